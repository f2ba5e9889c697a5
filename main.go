package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"optionsTracker/config"
	"optionsTracker/internal/adapters/logger"
	"optionsTracker/internal/adapters/sqlite"
	"optionsTracker/internal/app"
	"optionsTracker/internal/auth"
	"optionsTracker/internal/server"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Store (pool manager). An unreachable store is fatal: the
	// process must not serve traffic without it.
	store, err := sqlite.New(sqlite.Config{
		DBPath:          cfg.DBPath,
		MinConns:        cfg.PoolMinConns,
		MaxConns:        cfg.PoolMaxConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		AcquireTimeout:  cfg.AcquireTimeout,
		Logger:          appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize store")
		log.Fatalf("FATAL: Failed to initialize store: %v", err)
	}

	// 4. Initialize adapters
	engine, err := sqlite.NewEngine(appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize computation engine: %v", err)
	}
	txRepo, err := sqlite.NewTransactionRepository(appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize transaction repository: %v", err)
	}
	userRepo, err := sqlite.NewUserRepository(appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize user repository: %v", err)
	}
	auditRepo, err := sqlite.NewAuditLogRepository(appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize audit log repository: %v", err)
	}
	stockRepo, err := sqlite.NewStockRepository(appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize stock repository: %v", err)
	}

	// 5. Initialize services
	strategySvc, err := app.NewStrategyService(appLogger, store, engine, txRepo, userRepo, auditRepo, stockRepo)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize strategy service: %v", err)
	}
	authSvc, err := auth.NewService(auth.Config{
		Logger:     appLogger,
		Scope:      store,
		Users:      userRepo,
		JWTSecret:  cfg.JWTSecret,
		TokenTTL:   cfg.TokenTTL,
		BcryptCost: cfg.BcryptCost,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize auth service: %v", err)
	}

	// 6. HTTP boundary
	fapp := server.New(server.Config{
		Logger:    appLogger,
		Strategy:  strategySvc,
		Auth:      authSvc,
		JWTSecret: cfg.JWTSecret,
	})

	go func() {
		appLogger.Info(context.Background(), "Server listening", map[string]interface{}{"addr": cfg.ListenAddr})
		if err := fapp.Listen(cfg.ListenAddr); err != nil {
			appLogger.Error(context.Background(), err, "HTTP server stopped")
		}
	}()

	// 7. Wait for shutdown signal, then stop accepting requests and drain
	// the pool within the configured timeout.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	appLogger.Info(context.Background(), "Shutting down", map[string]interface{}{"signal": sig.String()})

	if err := fapp.Shutdown(); err != nil {
		appLogger.Error(context.Background(), err, "Error shutting down HTTP server")
	}
	if err := store.Close(cfg.ShutdownTimeout); err != nil {
		appLogger.Error(context.Background(), err, "Error draining connection pool")
		os.Exit(1)
	}
	appLogger.Info(context.Background(), "Shutdown complete")
}
