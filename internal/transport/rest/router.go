package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/safepark/platform-core/internal/auth"
	"github.com/safepark/platform-core/internal/authz"
	"github.com/safepark/platform-core/internal/branch"
	"github.com/safepark/platform-core/internal/install"
	"github.com/safepark/platform-core/internal/provisioning"
	"github.com/safepark/platform-core/internal/transport"
	"github.com/safepark/platform-core/internal/transport/middleware"
	"github.com/safepark/platform-core/internal/transport/swagger"
)

const APIPrefix = "/api/v1"

// Handlers groups everything the router mounts. Nil optional members are
// skipped.
type Handlers struct {
	Health       *HealthHandler
	Install      *install.Handler
	Auth         *auth.Handler
	Provisioning *provisioning.Handler
	Branch       *branch.Handler

	// Optional.
	Metrics     func(http.Handler) http.Handler
	MetricsPath string
	MetricsView http.Handler
	OpenAPI     *swagger.Document

	MaxBodyBytes int64
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, logger *slog.Logger) {
	rbac := authz.NewRBACAuthorization(logger)
	applyBodyLimit(h.MaxBodyBytes, h.Install.BaseHandler, h.Auth.BaseHandler, h.Provisioning.BaseHandler, h.Branch.BaseHandler)

	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	if h.Metrics != nil {
		router.Use(h.Metrics)
	}
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.BodyLimit(h.MaxBodyBytes))

	if h.OpenAPI != nil {
		router.Get(swagger.SpecYAMLPath, h.OpenAPI.ServeYAML)
		router.Get(swagger.SpecJSONPath, h.OpenAPI.ServeJSON)
		router.Handle("/swagger/*", swagger.Handler())
	}
	if h.MetricsView != nil && h.MetricsPath != "" {
		router.Handle(h.MetricsPath, h.MetricsView)
	}

	router.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", h.Health.healthCheckHandler)
		r.Get("/ping", h.Health.pingHandler)
		r.Get("/version", h.Health.versionHandler)

		r.Route("/setup", func(sr chi.Router) {
			sr.Get("/status", h.Install.Status)
			sr.Post("/install", h.Install.Install)
			sr.Post("/bootstrap", h.Install.Bootstrap)
		})

		r.Post("/auth/login", h.Auth.Login)

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/auth/me", h.Auth.Me)

			pr.Get("/branch-profile/{branchId}", h.Branch.GetProfile)
			pr.Put("/branch-profile/{branchId}", h.Branch.UpdateProfile)

			pr.Group(func(ar chi.Router) {
				ar.Use(rbac.RequirePlatformAdmin())
				ar.Post("/tenants", h.Provisioning.CreateTenant)
			})
		})
	})
}

// applyBodyLimit makes the handlers' decoders agree with the BodyLimit
// middleware so a configured cap above the default is honoured.
func applyBodyLimit(limit int64, bases ...*transport.BaseHandler) {
	if limit <= 0 {
		return
	}
	for _, b := range bases {
		b.MaxBodyBytes = limit
	}
}
