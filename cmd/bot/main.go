package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"musicpipe/internal/backend"
	"musicpipe/internal/config"
	"musicpipe/internal/downloader"
	"musicpipe/internal/receiver"
	"musicpipe/internal/repository/postgres"
	"musicpipe/internal/statemachine"
	"musicpipe/internal/telegram"
	"musicpipe/internal/webhook"

	"github.com/golang-migrate/migrate/v4"
	postgresdb "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v3"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting MusicPipe Bot")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database with retries
	db, err := connectDatabase(ctx, cfg.DSN(), logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connection established")

	// Run migrations
	if err := runMigrations(db, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	logger.Info("Database migrations completed")

	// Initialize repositories
	userStateRepo := postgres.NewUserStateRepo(db)

	// Initialize Telegram bot. Updates are fetched by the receiver, so
	// telebot's own poller is never started.
	bot, err := tele.NewBot(tele.Settings{
		Token: cfg.BotToken,
	})
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}
	tgClient := telegram.NewClient(bot, logger)

	logger.Info("Telegram bot initialized", zap.String("username", bot.Me.Username))

	// Initialize collaborators
	pipeline := downloader.NewPipeline(downloader.Options{
		RootDir: cfg.Downloader.RootDir,
		Command: cfg.Downloader.Command,
		Args:    cfg.Downloader.Args,
		Timeout: cfg.Downloader.Timeout,
	}, downloader.NewExecRunner(cfg.Downloader.KillGrace), logger)

	backendClient := backend.NewClient(backend.Options{
		BaseAddress: cfg.API.BaseAddress,
		APIKey:      cfg.API.Key,
		Retries:     cfg.API.Retries,
	}, logger)

	// Initialize state machine
	downloading := statemachine.NewDownloadingHandler(tgClient, pipeline, logger)
	registry, err := statemachine.NewRegistry(
		statemachine.NewInitialHandler(tgClient, downloading, backendClient, logger),
		downloading,
		statemachine.NewPostProcessHandler(tgClient, logger),
	)
	if err != nil {
		logger.Fatal("Failed to build state registry", zap.Error(err))
	}
	machine := statemachine.NewMachine(userStateRepo, registry, tgClient, logger)

	logger.Info("State handlers registered")

	poller := receiver.NewPoller(tgClient, machine, receiver.Options{
		PollTimeout: cfg.Receiver.PollTimeout,
		Cooldown:    cfg.Receiver.Cooldown,
		Workers:     cfg.Receiver.Workers,
	}, logger)

	server := webhook.NewServer(cfg.HTTPAddr, webhook.NewRouter(logger, webhook.Deps{
		Updater:  backendClient,
		Lookup:   userStateRepo,
		Notifier: tgClient,
	}, webhook.RateLimit{
		Permits: cfg.RateLimit.Permits,
		Window:  cfg.RateLimit.Window,
	}), logger)

	// Everything is constructed; let the receiver start polling
	started := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx, started)
	})
	g.Go(func() error {
		return server.Run(gctx)
	})
	close(started)

	logger.Info("Bot started successfully")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Bot stopped with error", zap.Error(err))
		return
	}

	logger.Info("Bot stopped gracefully")
}

// connectDatabase connects to PostgreSQL with retries
func connectDatabase(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	var db *sql.DB
	var err error

	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		db, err = sql.Open("postgres", dsn)
		if err != nil {
			logger.Warn("Failed to open database connection",
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			continue
		}

		// Test connection
		if err = db.PingContext(ctx); err != nil {
			logger.Warn("Failed to ping database",
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			db.Close()
			continue
		}

		// Connection successful
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		return db, nil
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB, logger *zap.Logger) error {
	driver, err := postgresdb.WithInstance(db, &postgresdb.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply")
	} else {
		logger.Info("Migrations applied successfully")
	}

	return nil
}
