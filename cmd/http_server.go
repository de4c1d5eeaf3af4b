package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/reimbursement-tracker/api"
	"github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/auth"
	authPostgres "github.com/frahmantamala/reimbursement-tracker/internal/auth/postgres"
	"github.com/frahmantamala/reimbursement-tracker/internal/blobstore"
	"github.com/frahmantamala/reimbursement-tracker/internal/category"
	"github.com/frahmantamala/reimbursement-tracker/internal/core/events"
	"github.com/frahmantamala/reimbursement-tracker/internal/ledger"
	"github.com/frahmantamala/reimbursement-tracker/internal/reimbursement"
	requestPostgres "github.com/frahmantamala/reimbursement-tracker/internal/reimbursement/postgres"
	"github.com/frahmantamala/reimbursement-tracker/internal/reporting"
	"github.com/frahmantamala/reimbursement-tracker/internal/reporting/sqlstore"
	"github.com/frahmantamala/reimbursement-tracker/internal/transport"
	"github.com/frahmantamala/reimbursement-tracker/internal/transport/rest"
	"github.com/frahmantamala/reimbursement-tracker/internal/user"
	userPostgres "github.com/frahmantamala/reimbursement-tracker/internal/user/postgres"
	"github.com/frahmantamala/reimbursement-tracker/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
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
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Redis    *redis.Client
	Blobs    blobstore.Store
	EventBus *events.EventBus
	Router   *chi.Mux
	Logger   *slog.Logger

	closers []io.Closer
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		deps.Close()
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "env", deps.Config.Server.Env)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	// let audit handlers finish before the stores go away
	deps.EventBus.Wait()
	deps.Close()
	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	lg := deps.Logger

	if _, err := api.Load(context.Background()); err != nil {
		return err
	}

	userRepo := userPostgres.NewUserRepository(deps.Gorm)
	requestRepo := requestPostgres.NewRequestRepository(deps.Gorm)

	var blacklist auth.Blacklist = auth.NewMemoryBlacklist()
	if deps.Redis != nil {
		blacklist = auth.NewRedisBlacklist(deps.Redis)
	}
	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewCredentialRepository(deps.Gorm), tokens, blacklist, lg)

	userService := user.NewService(userRepo, cfg.Security.BCryptCost, lg)
	ledgerService := ledger.NewService(userRepo, requestRepo, lg)
	requestService := reimbursement.NewService(requestRepo, userRepo, ledgerService, deps.Blobs, deps.EventBus, lg)
	reportingService := reporting.NewService(userRepo, sqlstore.New(deps.DB), reporting.Defaults{
		TopUsers:    cfg.Reporting.TopUsers,
		RecentLimit: cfg.Reporting.RecentLimit,
	}, lg)

	deps.EventBus.Subscribe(events.EventTypeRequestSubmitted, events.NewAuditHandler(lg))
	deps.EventBus.Subscribe(events.EventTypeRequestDecided, events.NewAuditHandler(lg))

	rest.RegisterAllRoutes(deps.Router, rest.Handlers{
		Health:        rest.NewHealthHandler(deps.DB, deps.Redis),
		Auth:          auth.NewHandler(authService),
		User:          user.NewHandler(userService),
		Category:      category.NewHandler(transport.NewBaseHandler(lg)),
		Budget:        ledger.NewHandler(ledgerService),
		Reimbursement: reimbursement.NewHandler(requestService, cfg.Server.UploadLimit()),
		Reporting:     reporting.NewHandler(reportingService),
		Files:         blobstore.NewHandler(deps.Blobs),
		OpenAPI:       api.OpenAPI,
	}, cfg.Server.AllowedOrigins, lg)
	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := config.Observability.Logging
	lg := logger.Setup(logger.Options{
		Env:        config.Server.Env,
		Level:      logCfg.Level,
		Format:     logCfg.Format,
		File:       logCfg.File,
		MaxSizeMB:  logCfg.MaxSizeMB,
		MaxBackups: logCfg.MaxBackups,
		MaxAgeDays: logCfg.MaxAgeDays,
	})

	deps := &Dependencies{
		Config:   config,
		Logger:   lg,
		Router:   chi.NewRouter(),
		EventBus: events.NewEventBus(lg),
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.DB = db
	deps.closers = append(deps.closers, db)

	deps.Gorm, err = openGorm(db)
	if err != nil {
		deps.Close()
		return nil, err
	}

	blobs, closer, err := blobstore.New(config.Storage)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	deps.Blobs = blobs
	deps.closers = append(deps.closers, closer)

	if config.Redis.Addr != "" {
		rdb, err := initRedis(config.Redis)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Redis = rdb
		deps.closers = append(deps.closers, rdb)
	} else {
		lg.Warn("redis not configured; revoked tokens are kept in memory")
	}

	return deps, nil
}

// Close releases resources in reverse order of acquisition.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			d.Logger.Error("close error", "error", err)
		}
	}
	d.closers = nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// openGorm shares the sqlx pool with the gorm repositories.
func openGorm(db *sqlx.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	return gdb, nil
}

func initRedis(cfg internal.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
