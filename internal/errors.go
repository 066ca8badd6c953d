package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeGone         ErrorType = "GONE"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeInvalidJSON              ErrorCode = "invalid_json"
	ErrCodePayloadTooLarge          ErrorCode = "payload_too_large"
	ErrCodeMissingFields            ErrorCode = "missing_fields"
	ErrCodeTenantRequired           ErrorCode = "tenant_required"
	ErrCodeBranchRequired           ErrorCode = "branch_required"
	ErrCodeAdminRequired            ErrorCode = "admin_required"
	ErrCodeWeakPassword             ErrorCode = "weak_password"
	ErrCodeInvalidExtraBranches     ErrorCode = "invalid_extra_branches"
	ErrCodeInvalidExtraBranch       ErrorCode = "invalid_extra_branch"
	ErrCodeMissingExtraBranchFields ErrorCode = "missing_extra_branch_fields"
	ErrCodeDuplicateBranchCode      ErrorCode = "duplicate_branch_code"
	ErrCodeInvalidAdminRoles        ErrorCode = "invalid_admin_roles"
	ErrCodeInvalidAdminRole         ErrorCode = "invalid_admin_role"
	ErrCodeInvalidProfile           ErrorCode = "invalid_profile"
	ErrCodeInvalidName              ErrorCode = "invalid_name"
	ErrCodeMissingCredentials       ErrorCode = "missing_credentials"
	ErrCodeTenantCodeExists         ErrorCode = "tenant_code_exists"
	ErrCodeBranchCodeExists         ErrorCode = "branch_code_exists"
	ErrCodeEmailAlreadyExists       ErrorCode = "email_already_exists"
	ErrCodeAlreadyInstalled         ErrorCode = "already_installed"
	ErrCodeInstallRequired          ErrorCode = "install_required"
	ErrCodeInvalidInstallKey        ErrorCode = "invalid_install_key"
	ErrCodeMissingBearerToken       ErrorCode = "missing_bearer_token"
	ErrCodeInvalidOrExpiredToken    ErrorCode = "invalid_or_expired_token"
	ErrCodeInvalidCredentials       ErrorCode = "invalid_credentials"
	ErrCodeInactiveUser             ErrorCode = "inactive_user"
	ErrCodeInsufficientRole         ErrorCode = "insufficient_role"
	ErrCodeCrossTenantForbidden     ErrorCode = "cross_tenant_forbidden"
	ErrCodeBranchScopeForbidden     ErrorCode = "branch_scope_forbidden"
	ErrCodeBranchNotFound           ErrorCode = "branch_not_found"
	ErrCodeNotFound                 ErrorCode = "not_found"
	ErrCodeBootstrapDeprecated      ErrorCode = "bootstrap_deprecated"
	ErrCodeRoleNotSeeded            ErrorCode = "role_not_seeded"
	ErrCodeInternal                 ErrorCode = "internal_error"
	ErrCodeValidationFailed         ErrorCode = "validation_failed"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			messages := make([]string, len(validationErrors.Errors))
			for i, err := range validationErrors.Errors {
				messages[i] = err.Message
			}
			return strings.Join(messages, "; ")
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on the stable code so sentinel values compare by meaning.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy; sentinel errors are shared.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewGoneError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeGone,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusGone,
	}
}

func NewPayloadTooLargeError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodePayloadTooLarge,
		Message:    message,
		StatusCode: http.StatusRequestEntityTooLarge,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrInvalidJSON         = NewValidationError("Request body must be valid JSON", ErrCodeInvalidJSON)
	ErrMissingCredentials  = NewValidationError("tenantCode, email and password are required", ErrCodeMissingCredentials)
	ErrTenantCodeExists    = NewConflictError("Tenant code already exists", ErrCodeTenantCodeExists)
	ErrBranchCodeExists    = NewConflictError("Branch code already exists in tenant", ErrCodeBranchCodeExists)
	ErrEmailAlreadyExists  = NewConflictError("Email already exists in tenant", ErrCodeEmailAlreadyExists)
	ErrAlreadyInstalled    = NewConflictError("Platform is already installed", ErrCodeAlreadyInstalled)
	ErrInstallRequired     = NewConflictError("Platform must be installed first", ErrCodeInstallRequired)
	ErrInvalidInstallKey   = NewForbiddenError("Invalid install key", ErrCodeInvalidInstallKey)
	ErrMissingBearerToken  = NewUnauthorizedError("Missing bearer token", ErrCodeMissingBearerToken)
	ErrInvalidToken        = NewUnauthorizedError("Invalid or expired token", ErrCodeInvalidOrExpiredToken)
	ErrInvalidCredentials  = NewUnauthorizedError("Invalid credentials", ErrCodeInvalidCredentials)
	ErrInactiveUser        = NewForbiddenError("User account is inactive", ErrCodeInactiveUser)
	ErrCrossTenant         = NewForbiddenError("Branch belongs to another tenant", ErrCodeCrossTenantForbidden)
	ErrBranchScope         = NewForbiddenError("Branch is outside your scope", ErrCodeBranchScopeForbidden)
	ErrBranchNotFound      = NewNotFoundError("Branch not found", ErrCodeBranchNotFound)
	ErrBootstrapDeprecated = NewGoneError("Bootstrap endpoint is deprecated, use /setup/install", ErrCodeBootstrapDeprecated)
)

// NewRoleNotSeededError reports a role grant whose catalog row is missing.
func NewRoleNotSeededError(role string) *AppError {
	e := NewInternalError("Role "+role+" is not seeded", nil)
	e.Code = ErrCodeRoleNotSeeded
	return e.WithDetails(map[string]interface{}{"role": role})
}

// NewInsufficientRoleError reports which roles would have been admitted.
func NewInsufficientRoleError(requiredRoles []string) *AppError {
	return NewForbiddenError("Insufficient role", ErrCodeInsufficientRole).
		WithDetails(map[string]interface{}{"requiredRoles": requiredRoles})
}

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given stable code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, e
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Error   string      `json:"error"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Error:   e.GetDetailedMessage(),
		Message: e.GetDetailedMessage(),
		Details: e.Details,
	})
}
