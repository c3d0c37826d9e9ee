package cmd

import (
	"context"
	"database/sql"
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

	"github.com/frahmantamala/messaging-permissions/internal"
	"github.com/frahmantamala/messaging-permissions/internal/auth"
	authpostgres "github.com/frahmantamala/messaging-permissions/internal/auth/postgres"
	"github.com/frahmantamala/messaging-permissions/internal/core/events"
	"github.com/frahmantamala/messaging-permissions/internal/maintenance"
	"github.com/frahmantamala/messaging-permissions/internal/notification"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
	"github.com/frahmantamala/messaging-permissions/internal/recruiting"
	recruitingpostgres "github.com/frahmantamala/messaging-permissions/internal/recruiting/postgres"
	"github.com/frahmantamala/messaging-permissions/internal/subscription"
	subscriptionpostgres "github.com/frahmantamala/messaging-permissions/internal/subscription/postgres"
	"github.com/frahmantamala/messaging-permissions/internal/transport/middleware"
	"github.com/frahmantamala/messaging-permissions/internal/transport/rest"
	"github.com/frahmantamala/messaging-permissions/internal/user"
	userpostgres "github.com/frahmantamala/messaging-permissions/internal/user/postgres"
	"github.com/frahmantamala/messaging-permissions/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

var withSweeper bool

type Dependencies struct {
	Config            *internal.Config
	Storage           *Storage
	Router            *chi.Mux
	Logger            *slog.Logger
	AuthHandler       *auth.Handler
	UserHandler       *user.Handler
	PermissionHandler *permission.Handler
	PermissionService *permission.Service
	Roles             *auth.RoleAuthorization
	Validator         *middleware.OpenAPIValidator
	EventBus          *events.EventBus
	Webhook           *notification.WebhookClient
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	log := deps.Logger

	setupRoutes(deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var scheduler *maintenance.Scheduler
	if withSweeper {
		scheduler = maintenance.NewScheduler(deps.PermissionService, deps.Config.Messaging.SweepInterval, log)
		scheduler.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	log.Info("Starting HTTP server", "address", addr, "driver", deps.Storage.Driver)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("Received signal, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 10*time.Second)
	if err := deps.EventBus.Close(drainCtx); err != nil {
		log.Warn("Event delivery did not finish", "error", err)
	}
	cancelDrain()
	if deps.Webhook != nil {
		deps.Webhook.Shutdown()
	}
	if err := deps.Storage.Close(); err != nil {
		log.Error("Database close error", "error", err)
	}

	log.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	var db *sql.DB
	if deps.Storage.Driver != "memory" {
		db = deps.Storage.SQL.DB
	}

	rest.RegisterAllRoutes(
		deps.Router,
		db,
		deps.AuthHandler,
		deps.UserHandler,
		deps.PermissionHandler,
		deps.Roles,
		deps.Validator,
		deps.Config.OpenAPISpec,
		deps.Logger,
	)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.LoggerWrapper()

	storage, err := openStorage(config.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if storage.Driver == "memory" {
		if err := seedDemoData(context.Background(), storage.Gorm, config.Security.BCryptCost, false); err != nil {
			return nil, fmt.Errorf("failed to seed in-memory database: %w", err)
		}
	}

	userService := user.NewService(userpostgres.NewUserRepository(storage.Gorm), log)

	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.JWTAccessSecret,
		config.Security.JWTRefreshSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authpostgres.NewRepository(storage.Gorm), tokenGen, config.Security.BCryptCost, log)

	eventBus := events.NewEventBus(log)
	webhook := startNotificationDelivery(config.Notification, eventBus, log)

	permissionService := buildPermissionService(config, storage, userService, eventBus, log)

	var validator *middleware.OpenAPIValidator
	if config.OpenAPISpec != "" {
		validator, err = middleware.NewOpenAPIValidatorFromFile(config.OpenAPISpec, log)
		if err != nil {
			return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
		}
	}

	return &Dependencies{
		Config:            config,
		Storage:           storage,
		Router:            chi.NewRouter(),
		Logger:            log,
		AuthHandler:       auth.NewHandler(authService),
		UserHandler:       user.NewHandler(userService),
		PermissionHandler: permission.NewHandler(permissionService),
		PermissionService: permissionService,
		Roles:             auth.NewRoleAuthorization(log),
		Validator:         validator,
		EventBus:          eventBus,
		Webhook:           webhook,
	}, nil
}

// buildPermissionService wires the engine to its oracles and the event bus.
func buildPermissionService(config *internal.Config, storage *Storage, users permission.UserDirectory, eventBus *events.EventBus, log *slog.Logger) *permission.Service {
	relationships := recruiting.NewService(recruitingpostgres.NewRepository(storage.SQL), log)
	entitlements := subscription.NewService(
		subscriptionpostgres.NewRepository(storage.SQL),
		subscription.NewPolicy(config.Messaging.QualifyingPlans),
		log,
	)

	return permission.NewService(permission.Dependencies{
		Repository:    storage.Permissions,
		Users:         users,
		Relationships: relationships,
		Entitlements:  entitlements,
		Notifications: notification.NewSink(eventBus, log),
	}, permission.Config{
		RequestTTL:        config.Messaging.RequestTTL,
		MaxRequestTTLDays: config.Messaging.MaxRequestTTLDays,
		AutoGrantTTL:      config.Messaging.AutoGrantTTL,
	}, log)
}

// startNotificationDelivery subscribes the webhook worker pool to permission
// events. Without a webhook URL events are only logged by the bus.
func startNotificationDelivery(cfg internal.NotificationConfig, eventBus *events.EventBus, log *slog.Logger) *notification.WebhookClient {
	if cfg.WebhookURL == "" {
		log.Info("notification webhook not configured; events stay in process")
		return nil
	}

	client := notification.NewWebhookClient(notification.Config{
		WebhookURL:     cfg.WebhookURL,
		Timeout:        cfg.Timeout,
		MaxWorkers:     cfg.MaxWorkers,
		JobQueueSize:   cfg.JobQueueSize,
		WorkerPoolSize: cfg.WorkerPoolSize,
	}, log)
	notification.NewEventHandler(client, log).RegisterEventHandlers(eventBus)
	return client
}

func init() {
	httpServerCmd.Flags().BoolVar(&withSweeper, "with-sweeper", true, "Run the stale request sweep inside the server process")
}
