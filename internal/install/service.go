package install

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/audit"
	"github.com/safepark/platform-core/internal/core/events"
	"github.com/safepark/platform-core/internal/provisioning"
)

var tracer = otel.Tracer("github.com/safepark/platform-core/internal/install")

type Service struct {
	store       Store
	provisioner *provisioning.Provisioner
	installKey  string
	clock       clock.Clock
	publisher   events.Publisher
	logger      *slog.Logger
}

type Option func(*Service)

// WithInstallKey requires installs to present key. An empty key disables the check.
func WithInstallKey(key string) Option {
	return func(s *Service) {
		s.installKey = key
	}
}

func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		s.clock = clk
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func NewService(store Store, provisioner *provisioning.Provisioner, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		provisioner: provisioner,
		clock:       clock.New(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reads the install record without locking it.
func (s *Service) State(ctx context.Context) (*State, error) {
	row, err := s.store.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("read install state: %w", err)
	}
	return StateFromDataModel(row), nil
}

func (s *Service) Status(ctx context.Context) (*Status, error) {
	st, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Installed: st.Installed}, nil
}

func (s *Service) IsInstalled(ctx context.Context) (bool, error) {
	st, err := s.State(ctx)
	if err != nil {
		return false, err
	}
	return st.Installed, nil
}

// Install provisions the first tenant and flips the platform to installed.
// Of any number of concurrent calls at most one succeeds; the rest fail with
// already_installed.
func (s *Service) Install(ctx context.Context, presentedKey string, req *provisioning.ProvisionRequest) (*Result, error) {
	ctx, span := tracer.Start(ctx, "install.Install")
	defer span.End()

	if !s.keyMatches(presentedKey) {
		s.logger.WarnContext(ctx, "install rejected: install key mismatch")
		return nil, internal.ErrInvalidInstallKey
	}

	installed, err := s.IsInstalled(ctx)
	if err != nil {
		return nil, err
	}
	if installed {
		return nil, internal.ErrAlreadyInstalled
	}

	payload, err := req.Validate(provisioning.PolicyInstall)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("tenant.code", payload.Tenant.Code))

	var result *provisioning.Result
	err = s.store.WithinInstallTx(ctx, func(repo Repository) error {
		row, err := repo.LockState(ctx)
		if err != nil {
			return fmt.Errorf("lock install state: %w", err)
		}
		if row.IsInstalled {
			return internal.ErrAlreadyInstalled
		}

		result, err = s.provisioner.Provision(ctx, repo, payload, provisioning.AuditContext{
			Action: audit.ActionInstallCompleted,
		})
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		row.IsInstalled = true
		row.InstalledAt = &now
		row.InstalledTenantID = &result.Tenant.ID
		row.InstalledBranchID = &result.Branch.ID
		row.InstalledUserID = &result.AdminUser.ID
		row.UpdatedAt = now
		return repo.MarkInstalled(ctx, row)
	})
	if err != nil {
		if !internal.HasCode(err, internal.ErrCodeAlreadyInstalled) {
			span.RecordError(err)
		}
		s.logger.WarnContext(ctx, "install failed", "tenant_code", payload.Tenant.Code, "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "platform installed",
		"tenant_id", result.Tenant.ID,
		"tenant_code", result.Tenant.Code,
		"admin_user_id", result.AdminUser.ID)

	if s.publisher != nil {
		event := events.NewPlatformInstalledEvent(result.Tenant.ID, result.Branch.ID, result.AdminUser.ID)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "failed to publish platform installed event", "error", err)
		}
	}

	return &Result{Installed: true, Result: result}, nil
}

func (s *Service) keyMatches(presented string) bool {
	if s.installKey == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.installKey)) == 1
}
