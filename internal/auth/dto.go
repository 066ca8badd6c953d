package auth

import (
	"strings"

	"github.com/safepark/platform-core/internal"
)

// LoginDTO is the body of POST /auth/login.
type LoginDTO struct {
	TenantCode string `json:"tenantCode"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// Normalize trims and lower-cases the tenant code and email and reports
// missing_credentials when any field is empty.
func (d *LoginDTO) Normalize() error {
	d.TenantCode = strings.ToLower(strings.TrimSpace(d.TenantCode))
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	if d.TenantCode == "" || d.Email == "" || d.Password == "" {
		return internal.ErrMissingCredentials
	}
	return nil
}
