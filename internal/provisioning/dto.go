package provisioning

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/authz"
	"github.com/safepark/platform-core/internal/core/common/validation"
)

const MinPasswordLength = 8

// ProvisionRequest is the wire shape shared by install and tenant creation.
// Sections stay raw so type mismatches map to their own codes.
type ProvisionRequest struct {
	Tenant        json.RawMessage `json:"tenant"`
	Branch        json.RawMessage `json:"branch"`
	ExtraBranches json.RawMessage `json:"extraBranches"`
	AdminUser     json.RawMessage `json:"adminUser"`
}

// Validate normalises the request into a Payload. Codes and emails are
// trimmed and lower-cased, names trimmed.
func (r *ProvisionRequest) Validate(policy RolePolicy) (*Payload, error) {
	tenant, ok := decodeObject(r.Tenant)
	if !ok {
		return nil, internal.NewValidationError("tenant object is required", internal.ErrCodeTenantRequired)
	}
	branch, ok := decodeObject(r.Branch)
	if !ok {
		return nil, internal.NewValidationError("branch object is required", internal.ErrCodeBranchRequired)
	}
	admin, ok := decodeObject(r.AdminUser)
	if !ok {
		return nil, internal.NewValidationError("adminUser object is required", internal.ErrCodeAdminRequired)
	}

	p := &Payload{
		Tenant: TenantInput{
			Code: normalizeCode(stringField(tenant, "code")),
			Name: strings.TrimSpace(stringField(tenant, "name")),
		},
		Branch: BranchInput{
			Code: normalizeCode(stringField(branch, "code")),
			Name: strings.TrimSpace(stringField(branch, "name")),
		},
		AdminUser: AdminInput{
			FullName: strings.TrimSpace(stringField(admin, "fullName")),
			Email:    normalizeEmail(stringField(admin, "email")),
			Password: stringField(admin, "password"),
		},
	}

	v := validation.NewValidator()
	v.Field("tenant.code", p.Tenant.Code).Required(internal.ErrCodeMissingFields)
	v.Field("tenant.name", p.Tenant.Name).Required(internal.ErrCodeMissingFields)
	v.Field("branch.code", p.Branch.Code).Required(internal.ErrCodeMissingFields)
	v.Field("branch.name", p.Branch.Name).Required(internal.ErrCodeMissingFields)
	v.Field("adminUser.fullName", p.AdminUser.FullName).Required(internal.ErrCodeMissingFields)
	v.Field("adminUser.email", p.AdminUser.Email).Required(internal.ErrCodeMissingFields)
	v.Field("adminUser.password", p.AdminUser.Password).Required(internal.ErrCodeMissingFields)
	if err := v.Validate(); err != nil {
		return nil, err
	}

	v = validation.NewValidator()
	v.Field("adminUser.password", p.AdminUser.Password).MinLength(MinPasswordLength, internal.ErrCodeWeakPassword)
	if err := v.Validate(); err != nil {
		return nil, err
	}

	profile, err := profileField(branch)
	if err != nil {
		return nil, err
	}
	p.Branch.Profile = profile

	extras, err := parseExtraBranches(r.ExtraBranches)
	if err != nil {
		return nil, err
	}
	p.ExtraBranches = extras

	if dup := firstDuplicate(p.BranchCodes()); dup != "" {
		return nil, internal.NewValidationError("branch code "+dup+" appears more than once", internal.ErrCodeDuplicateBranchCode).
			WithDetails(map[string]interface{}{"code": dup})
	}

	roles, err := resolveRoles(policy, admin)
	if err != nil {
		return nil, err
	}
	p.AdminUser.Roles = roles

	return p, nil
}

func parseExtraBranches(raw json.RawMessage) ([]BranchInput, error) {
	if isAbsent(raw) {
		return []BranchInput{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, internal.NewValidationError("extraBranches must be an array", internal.ErrCodeInvalidExtraBranches)
	}

	out := make([]BranchInput, 0, len(items))
	for _, item := range items {
		obj, ok := decodeObject(item)
		if !ok {
			return nil, internal.NewValidationError("each extra branch must be an object", internal.ErrCodeInvalidExtraBranch)
		}
		b := BranchInput{
			Code: normalizeCode(stringField(obj, "code")),
			Name: strings.TrimSpace(stringField(obj, "name")),
		}
		if b.Code == "" || b.Name == "" {
			return nil, internal.NewValidationError("each extra branch needs code and name", internal.ErrCodeMissingExtraBranchFields)
		}
		profile, err := profileField(obj)
		if err != nil {
			return nil, err
		}
		b.Profile = profile
		out = append(out, b)
	}
	return out, nil
}

func resolveRoles(policy RolePolicy, admin map[string]interface{}) (authz.RoleSet, error) {
	if policy == PolicyInstall {
		return installRoles, nil
	}

	raw, present := admin["roles"]
	if !present || raw == nil {
		return defaultRoles, nil
	}

	list, ok := raw.([]interface{})
	if !ok || len(list) == 0 {
		return 0, internal.NewValidationError("adminUser.roles must be a non-empty array", internal.ErrCodeInvalidAdminRoles)
	}

	var roles authz.RoleSet
	for _, item := range list {
		key, ok := item.(string)
		if !ok {
			return 0, internal.NewValidationError("adminUser.roles entries must be strings", internal.ErrCodeInvalidAdminRole)
		}
		role, ok := authz.ParseRole(strings.ToLower(strings.TrimSpace(key)))
		if !ok || !assignableRoles.Has(role) {
			return 0, internal.NewValidationError("role "+key+" cannot be assigned", internal.ErrCodeInvalidAdminRole).
				WithDetails(map[string]interface{}{"allowedRoles": assignableRoles.Keys()})
		}
		roles = roles.Add(role)
	}
	return roles, nil
}

// firstDuplicate returns the first code that repeats an earlier one.
func firstDuplicate(codes []string) string {
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			return c
		}
		seen[c] = struct{}{}
	}
	return ""
}

func profileField(obj map[string]interface{}) (map[string]interface{}, error) {
	raw, present := obj["profile"]
	if !present || raw == nil {
		return map[string]interface{}{}, nil
	}
	profile, ok := raw.(map[string]interface{})
	if !ok {
		return nil, internal.NewValidationError("profile must be an object", internal.ErrCodeInvalidProfile)
	}
	return profile, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decodeObject reports false for absent, null and non-object values.
func decodeObject(raw json.RawMessage) (map[string]interface{}, bool) {
	if isAbsent(raw) {
		return nil, false
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

func normalizeCode(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
