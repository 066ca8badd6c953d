package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/safepark/platform-core/api"
	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/auth"
	authPostgres "github.com/safepark/platform-core/internal/auth/postgres"
	"github.com/safepark/platform-core/internal/authz"
	authzPostgres "github.com/safepark/platform-core/internal/authz/postgres"
	"github.com/safepark/platform-core/internal/branch"
	branchPostgres "github.com/safepark/platform-core/internal/branch/postgres"
	"github.com/safepark/platform-core/internal/core/events"
	"github.com/safepark/platform-core/internal/credential"
	"github.com/safepark/platform-core/internal/install"
	installPostgres "github.com/safepark/platform-core/internal/install/postgres"
	"github.com/safepark/platform-core/internal/metrics"
	"github.com/safepark/platform-core/internal/provisioning"
	provisioningPostgres "github.com/safepark/platform-core/internal/provisioning/postgres"
	"github.com/safepark/platform-core/internal/session"
	"github.com/safepark/platform-core/internal/store"
	"github.com/safepark/platform-core/internal/telemetry"
	"github.com/safepark/platform-core/internal/transport/rest"
	"github.com/safepark/platform-core/internal/transport/swagger"
	"github.com/safepark/platform-core/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config  *internal.Config
	DB      *store.DB
	Router  *chi.Mux
	Handler http.Handler
	Bus     *events.EventBus
	Metrics *metrics.Metrics
	Install *install.Service
	Logger  *slog.Logger
}

func startHTTPServer() {
	cfg, err := loadConfig(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.App.Env, logger.WithLevel(cfg.Observability.Logging.Level), logger.WithFormat(cfg.Observability.Logging.Format))
	lg := logger.L()

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Observability.Tracing, cfg.App.Version, lg)
	if err != nil {
		lg.Error("tracing setup failed; continuing without export", "error", err)
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		lg.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	if cfg.Database.Driver == internal.DriverSQLite {
		if err := prepareSQLite(ctx, db); err != nil {
			lg.Error("failed to prepare sqlite store", "error", err)
			os.Exit(1)
		}
	}

	deps, err := NewDependencies(ctx, cfg, db, lg)
	if err != nil {
		lg.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		lg.Info("Starting HTTP server", "address", addr, "env", cfg.App.Env, "version", cfg.App.Version)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("Received signal, shutting down...", "signal", sig)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("Server shutdown error", "error", err)
	}
	deps.Bus.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		lg.Error("Tracer shutdown error", "error", err)
	}
	if err := db.Close(); err != nil {
		lg.Error("Database close error", "error", err)
	}

	lg.Info("Server stopped")
}

// prepareSQLite migrates and seeds a SQLite store in place. Postgres is
// prepared out of band with the migrate and seed commands.
func prepareSQLite(ctx context.Context, db *store.DB) error {
	if err := store.AutoMigrate(db.Gorm); err != nil {
		return err
	}
	return store.Seed(ctx, db.SQL, authz.CatalogRows())
}

// NewDependencies wires repositories, services and handlers over db and
// builds the instrumented router.
func NewDependencies(ctx context.Context, cfg *internal.Config, db *store.DB, lg *slog.Logger) (*Dependencies, error) {
	bus := events.NewEventBus(lg)
	subscribeEventLogging(bus, lg)

	var m *metrics.Metrics
	if cfg.Observability.Metrics.Enabled {
		m = metrics.New(metrics.DefaultNamespace)
		m.Subscribe(bus)
	}

	codec := credential.NewCodec(credential.Params{
		N: cfg.Security.Scrypt.N,
		R: cfg.Security.Scrypt.R,
		P: cfg.Security.Scrypt.P,
	})
	tokens := session.NewIssuer(cfg.Security.SessionSecret, session.WithTTL(cfg.Security.SessionTTL))
	authority := authz.NewAuthority(authzPostgres.NewRoleRepository(db.Gorm), lg)
	provisioner := provisioning.NewProvisioner(codec, nil, lg)

	installService := install.NewService(installPostgres.NewRepository(db.Gorm), provisioner, lg,
		install.WithInstallKey(cfg.Security.InstallKey),
		install.WithPublisher(bus),
	)
	provisioningService := provisioning.NewService(provisioningPostgres.NewRepository(db.Gorm), provisioner, installService, bus, lg)
	authService := auth.NewService(authPostgres.NewRepository(db.Gorm), tokens, codec, authority, lg,
		auth.WithPublisher(bus),
	)
	branchService := branch.NewService(branchPostgres.NewBranchRepository(db.Gorm), nil, lg)

	doc, err := swagger.Load(ctx, api.OpenAPISpec)
	if err != nil {
		return nil, err
	}

	handlers := rest.Handlers{
		Health: rest.NewHealthHandler(db.SQL, installService, rest.BuildInfo{
			Version: cfg.App.Version,
			Env:     cfg.App.Env,
		}),
		Install:      install.NewHandler(installService),
		Auth:         auth.NewHandler(authService),
		Provisioning: provisioning.NewHandler(provisioningService),
		Branch:       branch.NewHandler(branchService),
		OpenAPI:      doc,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if m != nil {
		handlers.Metrics = m.Middleware
		handlers.MetricsPath = cfg.Observability.Metrics.Path
		handlers.MetricsView = m.Handler()
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, handlers, lg)

	return &Dependencies{
		Config:  cfg,
		DB:      db,
		Router:  router,
		Handler: otelhttp.NewHandler(router, "platform-core"),
		Bus:     bus,
		Metrics: m,
		Install: installService,
		Logger:  lg,
	}, nil
}
