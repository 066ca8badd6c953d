package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePlatformInstalled = "platform.installed"
	EventTypeTenantProvisioned = "tenant.provisioned"
	EventTypeLoginAttempted    = "auth.login"
)

type TenantProvisionedEvent struct {
	BaseEvent
	TenantID    string   `json:"tenant_id"`
	TenantCode  string   `json:"tenant_code"`
	BranchCount int      `json:"branch_count"`
	AdminUserID string   `json:"admin_user_id"`
	AdminRoles  []string `json:"admin_roles"`
}

func NewTenantProvisionedEvent(tenantID, tenantCode string, branchCount int, adminUserID string, adminRoles []string) *TenantProvisionedEvent {
	return &TenantProvisionedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypeTenantProvisioned,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"tenant_id":     tenantID,
				"tenant_code":   tenantCode,
				"branch_count":  branchCount,
				"admin_user_id": adminUserID,
				"admin_roles":   adminRoles,
			},
		},
		TenantID:    tenantID,
		TenantCode:  tenantCode,
		BranchCount: branchCount,
		AdminUserID: adminUserID,
		AdminRoles:  adminRoles,
	}
}

type PlatformInstalledEvent struct {
	BaseEvent
	TenantID string `json:"tenant_id"`
	BranchID string `json:"branch_id"`
	UserID   string `json:"user_id"`
}

func NewPlatformInstalledEvent(tenantID, branchID, userID string) *PlatformInstalledEvent {
	return &PlatformInstalledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypePlatformInstalled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"tenant_id": tenantID,
				"branch_id": branchID,
				"user_id":   userID,
			},
		},
		TenantID: tenantID,
		BranchID: branchID,
		UserID:   userID,
	}
}

// LoginAttemptedEvent reports a login outcome: "success", "failed" or
// "inactive".
type LoginAttemptedEvent struct {
	BaseEvent
	TenantCode string `json:"tenant_code"`
	Outcome    string `json:"outcome"`
}

func NewLoginAttemptedEvent(tenantCode, outcome string) *LoginAttemptedEvent {
	return &LoginAttemptedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypeLoginAttempted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"tenant_code": tenantCode,
				"outcome":     outcome,
			},
		},
		TenantCode: tenantCode,
		Outcome:    outcome,
	}
}
