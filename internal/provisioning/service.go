package provisioning

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/audit"
	"github.com/safepark/platform-core/internal/authz"
	"github.com/safepark/platform-core/internal/core/events"
)

var tracer = otel.Tracer("github.com/safepark/platform-core/internal/provisioning")

// InstallGate reports whether the platform has completed its first install.
type InstallGate interface {
	IsInstalled(ctx context.Context) (bool, error)
}

type Service struct {
	tx          TxRunner
	provisioner *Provisioner
	gate        InstallGate
	publisher   events.Publisher
	logger      *slog.Logger
}

func NewService(tx TxRunner, provisioner *Provisioner, gate InstallGate, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		tx:          tx,
		provisioner: provisioner,
		gate:        gate,
		publisher:   publisher,
		logger:      logger,
	}
}

// CreateTenant provisions an additional tenant on behalf of a platform admin.
func (s *Service) CreateTenant(ctx context.Context, actor authz.Principal, req *ProvisionRequest) (*Result, error) {
	ctx, span := tracer.Start(ctx, "provisioning.CreateTenant")
	defer span.End()

	if err := authz.RequireRole(actor, authz.RolePlatformAdmin); err != nil {
		return nil, err
	}

	installed, err := s.gate.IsInstalled(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !installed {
		return nil, internal.ErrInstallRequired
	}

	payload, err := req.Validate(PolicyTenantCreation)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("tenant.code", payload.Tenant.Code),
		attribute.Int("branch.count", 1+len(payload.ExtraBranches)),
	)

	var result *Result
	err = s.tx.WithinTx(ctx, func(repo Repository) error {
		var txErr error
		result, txErr = s.provisioner.Provision(ctx, repo, payload, AuditContext{
			Action: audit.ActionTenantCreated,
			Actor:  &actor,
		})
		return txErr
	})
	if err != nil {
		if _, ok := internal.IsAppError(err); !ok {
			span.RecordError(err)
			span.SetStatus(codes.Error, "provisioning failed")
		}
		s.logger.WarnContext(ctx, "tenant creation failed", "tenant_code", payload.Tenant.Code, "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "tenant created",
		"tenant_id", result.Tenant.ID,
		"tenant_code", result.Tenant.Code,
		"actor_user_id", actor.UserID)

	if s.publisher != nil {
		event := events.NewTenantProvisionedEvent(result.Tenant.ID, result.Tenant.Code, len(result.Branches),
			result.AdminUser.ID, result.AdminUser.Roles)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "failed to publish tenant provisioned event", "error", err)
		}
	}

	return result, nil
}
