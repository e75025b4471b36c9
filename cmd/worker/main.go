package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harikeshav-R/Penny/internal/app"
	"github.com/Harikeshav-R/Penny/internal/config"
	"github.com/Harikeshav-R/Penny/internal/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Component(logger.NewWithLevel(cfg.LogLevel), "worker")

	if cfg.JobQueue != config.QueueAMQP {
		log.Fatal().Str("job_queue", cfg.JobQueue).Msg("The worker consumes from AMQP; set JOB_QUEUE=amqp")
	}

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

	log.Info().
		Str("queue", cfg.AMQPQueue).
		Int("workers", cfg.WorkerCount).
		Msg("Starting worker service")

	if err := queue.Start(ctx, a.JobHandler()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")
	<-ctx.Done()

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
