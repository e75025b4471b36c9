package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harikeshav-R/Penny/internal/api/handlers"
	"github.com/Harikeshav-R/Penny/internal/app"
	"github.com/Harikeshav-R/Penny/internal/auth"
	"github.com/Harikeshav-R/Penny/internal/config"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Money is served as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise application")
	}
	defer a.Close()

	queue, err := a.NewQueue()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open job queue")
	}
	defer queue.Close()

	var uploaderOpts []handlers.AnalysisOption
	if a.Archive != nil {
		uploaderOpts = append(uploaderOpts, handlers.WithUploader(a.Archive))
	}

	handler := handlers.NewRouter(handlers.RouterDeps{
		Analysis: handlers.NewAnalysisHandler(a.Analyzer, a.Ledger, queue, uploaderOpts...),
		Jobs:     handlers.NewJobsHandler(a.JobStore),
		Chat:     handlers.NewChatHandler(a.Orchestrator(), a.Ledger, nil),
		Verifier: auth.NewTokenService(cfg.JWTSecret),
		Limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		Log:      log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// The in-memory queue has no other consumer, so the API runs its workers.
	if cfg.JobQueue == config.QueueMemory {
		log.Info().Int("workers", cfg.WorkerCount).Msg("Starting in-process job workers")
		if err := queue.Start(ctx, a.JobHandler()); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job workers")
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return queue.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
	}

	log.Info().Msg("Server exited")
}
