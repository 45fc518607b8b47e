package main

import (
	"articlehub/config"
	"articlehub/config/database"
	"articlehub/internal/article/repository"
	"articlehub/internal/hitcounter"
	"articlehub/middleware"
	"articlehub/pkg/logger"
	"articlehub/router"
	"articlehub/socket"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const (
	connectRetries  = 5
	connectBackoff  = 2 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Sugar.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	if !cfg.DotEnvLoaded {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.Database.DSN(), connectRetries, connectBackoff)
	if err != nil {
		logger.Sugar.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Sugar.Fatalf("Could not migrate database: %v", err)
	}

	// Background workers stop with ctx; the hit counter flushes once more on the way out.
	var workers sync.WaitGroup
	hub := socket.NewHub(db)
	hits := hitcounter.New(repository.NewArticleRepository(db))
	agreeLimiter := middleware.NewRateLimiter(cfg.AgreeRateLimit, cfg.AgreeRateWindow)
	for _, run := range []func(context.Context){
		hub.Run,
		func(ctx context.Context) { hits.Run(ctx, cfg.HitFlushInterval) },
		agreeLimiter.Run,
	} {
		workers.Add(1)
		go func() {
			defer workers.Done()
			run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.Setup(cfg, db, hub, hits, agreeLimiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Sugar.Infof("Article service listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("HTTP shutdown: %v", err)
	}
	workers.Wait()
}
