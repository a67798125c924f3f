package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sahilchouksey/module-enhancer/api"
	"github.com/sahilchouksey/module-enhancer/config"
	"github.com/sahilchouksey/module-enhancer/database"
	"github.com/sahilchouksey/module-enhancer/router"
	"github.com/sahilchouksey/module-enhancer/services"
	"github.com/sahilchouksey/module-enhancer/services/cron"
	"github.com/sahilchouksey/module-enhancer/services/queue"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"github.com/sahilchouksey/module-enhancer/utils/middleware"
)

// drainTimeout bounds how long shutdown waits for the running job and open requests
const drainTimeout = 30 * time.Second

func SetupAndRunServer() error {
	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	log, err := logger.New(getEnv.GO_ENV, getEnv.LOG_FILE)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize GORM database connection
	store, err := database.StartGORM(getEnv, log)
	if err != nil {
		log.Error("Check whether the Postgres is running or not", "host", getEnv.DB_HOST, "port", getEnv.DB_PORT)
		return err
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize database tables: %w", err)
	}

	generator, cleanup, err := BuildPipeline(ctx, getEnv, store, log)
	if err != nil {
		return err
	}
	defer cleanup()

	enhancer := services.NewEnhancementService(store, generator, log)

	jobs, err := queue.New(queue.Config{
		TickInterval: getEnv.QUEUE_TICK_INTERVAL,
		SnapshotPath: getEnv.QUEUE_SNAPSHOT_PATH,
		SoftLimit:    getEnv.QUEUE_SOFT_LIMIT,
	}, enhancer, log)
	if err != nil {
		return err
	}
	jobs.Start()
	defer func() {
		// A crash skips Shutdown; keep the pending jobs for the next start
		if r := recover(); r != nil {
			if err := jobs.PersistSnapshot(); err != nil {
				log.Error("Failed to persist queue snapshot", "error", err)
			}
			panic(r)
		}
	}()

	cronManager := cron.NewCronManager(store, log)
	if err := cronManager.Start(); err != nil {
		// Ledger pruning is optional
		log.Warn("Failed to start cron jobs", "error", err)
		cronManager = nil
	}

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT), log)
	engine := server.GetEngine()

	middleware.SetupSecurity(engine, middleware.SecurityConfig{
		AllowedOrigins:    getEnv.CORS_ALLOWED_ORIGINS,
		RateLimitRequests: getEnv.RATE_LIMIT_REQUESTS,
		RateLimitWindow:   time.Minute,
	})

	router.SetupRoutes(engine, router.Dependencies{
		DB:       store,
		Queue:    jobs,
		Preparer: enhancer,
		Log:      log,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run()
	}()

	select {
	case err = <-serverErr:
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	if cronManager != nil {
		cronManager.Stop()
	}
	jobs.Shutdown()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if shutdownErr := server.Shutdown(drainCtx); shutdownErr != nil {
		log.Warn("API server did not stop cleanly", "error", shutdownErr)
	}
	if waitErr := jobs.Wait(drainCtx); waitErr != nil {
		log.Warn("Running enhancement job did not finish before shutdown", "error", waitErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
