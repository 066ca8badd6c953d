// Package audit appends immutable action records.
package audit

import (
	"context"
	"encoding/json"
	"time"
)

const (
	ActionInstallCompleted     = "setup.install.completed"
	ActionTenantCreated        = "tenant.created"
	ActionLoginSuccess         = "auth.login.success"
	ActionLoginFailed          = "auth.login.failed"
	ActionBranchProfileUpdated = "branch.profile.updated"
)

const (
	EntityTenant = "tenant"
	EntityUser   = "user"
	EntityBranch = "branch"
)

// Entry is one audit record. Empty optional ids are stored as NULL.
type Entry struct {
	TenantID   string
	BranchID   string
	UserID     string
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}

// Emitter appends entries. Implementations bound to a transaction share its
// fate: a rolled back transaction leaves no entry behind.
type Emitter interface {
	Record(ctx context.Context, entry Entry) error
}

// NormalizeMetadata returns a JSON-safe copy of m. A nil map becomes empty and
// values that cannot be encoded are replaced by their string form.
func NormalizeMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if _, err := json.Marshal(v); err != nil {
			out[k] = unencodable(v)
			continue
		}
		out[k] = v
	}
	return out
}

func unencodable(v interface{}) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return "[unserializable]"
}
