package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/audit"
	"github.com/safepark/platform-core/internal/authz"
	"github.com/safepark/platform-core/internal/core/events"
	"github.com/safepark/platform-core/internal/core/tenancy"
	"github.com/safepark/platform-core/internal/store"
)

var tracer = otel.Tracer("github.com/safepark/platform-core/internal/auth")

const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeInactive = "inactive"
)

// Service logs users in and resolves bearer tokens into identities.
type Service struct {
	repo      Repository
	tokens    TokenIssuer
	passwords PasswordVerifier
	roles     RoleResolver
	clock     clock.Clock
	publisher events.Publisher
	logger    *slog.Logger
}

type Option func(*Service)

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

func NewService(repo Repository, tokens TokenIssuer, passwords PasswordVerifier, roles RoleResolver, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		tokens:    tokens,
		passwords: passwords,
		roles:     roles,
		clock:     clock.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks tenant, email and password and issues a session token.
// Unknown tenant, unknown user and wrong password are indistinguishable to
// the caller. The inactive check runs only after the password matched.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*LoginResponse, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	if err := dto.Normalize(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("tenant.code", dto.TenantCode))

	tenant, err := s.repo.FindTenantByCode(ctx, dto.TenantCode)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.loginFailed(ctx, "", dto, "unknown_tenant")
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant: %w", err)
	}

	user, err := s.repo.FindUserByEmail(ctx, tenant.ID, dto.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.loginFailed(ctx, tenant.ID, dto, "unknown_user")
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.passwords.Verify(dto.Password, user.PasswordCredential) {
		return nil, s.loginFailed(ctx, tenant.ID, dto, "invalid_password")
	}

	if !user.IsActive {
		s.logger.WarnContext(ctx, "login refused for inactive user", "user_id", user.ID)
		s.publish(ctx, events.NewLoginAttemptedEvent(dto.TenantCode, OutcomeInactive))
		return nil, internal.ErrInactiveUser
	}

	roles, err := s.roles.RolesOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	err = s.repo.WithinTx(ctx, func(tx TxRepository) error {
		if err := tx.TouchLastLogin(ctx, user.ID, now); err != nil {
			return fmt.Errorf("touch last login: %w", err)
		}
		return tx.Record(ctx, audit.Entry{
			TenantID:   user.TenantID,
			BranchID:   user.BranchID,
			UserID:     user.ID,
			Action:     audit.ActionLoginSuccess,
			EntityType: audit.EntityUser,
			EntityID:   user.ID,
			Metadata:   map[string]interface{}{"tenantCode": dto.TenantCode},
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}
	user.LastLoginAt = &now
	user.UpdatedAt = now

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to issue session token", err)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "tenant_id", user.TenantID)
	s.publish(ctx, events.NewLoginAttemptedEvent(dto.TenantCode, OutcomeSuccess))

	return &LoginResponse{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   expiresAt.UTC(),
		User:        tenancy.WithRoles(tenancy.UserFromDataModel(user), roles.Keys()),
	}, nil
}

// loginFailed records the failed attempt and returns the uniform credential error.
func (s *Service) loginFailed(ctx context.Context, tenantID string, dto LoginDTO, reason string) error {
	err := s.repo.Record(ctx, audit.Entry{
		TenantID:   tenantID,
		Action:     audit.ActionLoginFailed,
		EntityType: audit.EntityUser,
		Metadata: map[string]interface{}{
			"reason":     reason,
			"tenantCode": dto.TenantCode,
			"email":      dto.Email,
		},
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record failed login", "error", err)
	}
	s.logger.InfoContext(ctx, "login failed", "tenant_code", dto.TenantCode, "reason", reason)
	s.publish(ctx, events.NewLoginAttemptedEvent(dto.TenantCode, OutcomeFailed))
	return internal.ErrInvalidCredentials
}

// Authenticate resolves a bearer token into the caller's identity. Tokens for
// unknown or deactivated users are treated like invalid tokens.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, internal.ErrInvalidToken.WithCause(err)
	}

	user, err := s.repo.FindUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, internal.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		return nil, internal.ErrInvalidToken
	}

	roles, err := s.roles.RolesOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	tenant, err := s.repo.FindTenantByID(ctx, user.TenantID)
	if err != nil {
		return nil, fmt.Errorf("find tenant of user %s: %w", user.ID, err)
	}
	branch, err := s.repo.FindBranchByID(ctx, user.BranchID)
	if err != nil {
		return nil, fmt.Errorf("find branch of user %s: %w", user.ID, err)
	}

	return &Identity{
		Principal: authz.Principal{
			UserID:       user.ID,
			TenantID:     user.TenantID,
			HomeBranchID: user.BranchID,
			Roles:        roles,
		},
		User:   tenancy.UserFromDataModel(user),
		Tenant: tenancy.TenantFromDataModel(tenant),
		Branch: tenancy.BranchFromDataModel(branch),
	}, nil
}

func (s *Service) Me(id *Identity) *MeResponse {
	return &MeResponse{
		User:   tenancy.WithRoles(id.User, id.Principal.Roles.Keys()),
		Tenant: id.Tenant,
		Branch: id.Branch,
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
