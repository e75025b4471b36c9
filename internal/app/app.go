// Package app assembles the long-lived components the binaries share from a
// loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harikeshav-R/Penny/internal/agent"
	"github.com/Harikeshav-R/Penny/internal/config"
	"github.com/Harikeshav-R/Penny/internal/gcsuploader"
	infraBQ "github.com/Harikeshav-R/Penny/internal/infra/bigquery"
	"github.com/Harikeshav-R/Penny/internal/jobs"
	"github.com/Harikeshav-R/Penny/internal/jobs/amqp"
	"github.com/Harikeshav-R/Penny/internal/jobs/inmemory"
	"github.com/Harikeshav-R/Penny/internal/ledger"
	"github.com/Harikeshav-R/Penny/internal/ledger/memory"
	"github.com/Harikeshav-R/Penny/internal/ledger/sqlite"
	"github.com/Harikeshav-R/Penny/internal/llm"
	"github.com/Harikeshav-R/Penny/internal/pipeline"
	"github.com/Harikeshav-R/Penny/internal/retry"
	"github.com/Harikeshav-R/Penny/internal/worker"
	"github.com/rs/zerolog"
)

// queueBuffer is the channel size of the in-memory job queue.
const queueBuffer = 100

// JobQueue publishes and consumes analysis jobs.
type JobQueue interface {
	jobs.Publisher
	jobs.Consumer
}

// App holds the shared components. Archive is nil without GCS_BUCKET; Runs
// is a no-op without BIGQUERY_PROJECT.
type App struct {
	Config   *config.Config
	Ledger   ledger.Store
	Model    *llm.Client
	Analyzer *pipeline.Analyzer
	Archive  *gcsuploader.Archive
	Runs     pipeline.RunRepository
	JobStore jobs.JobStore

	log     zerolog.Logger
	closers []func() error
}

// New builds the components selected by cfg. Cloud clients are only created
// when their settings are present; a missing model credential is not an
// error here.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, log: log, JobStore: inmemory.NewStore()}

	store, err := OpenLedger(cfg)
	if err != nil {
		return nil, err
	}
	a.Ledger = store
	if c, ok := store.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	a.Model = llm.NewClient(llm.Config{
		Backend:  cfg.GenAIBackend,
		APIKey:   cfg.GeminiAPIKey,
		Project:  cfg.CloudProject,
		Location: cfg.CloudLocation,
		Model:    cfg.ModelName,
	})
	if err := a.Model.Ready(); err != nil {
		log.Warn().Err(err).Msg("Model credential missing - AI features are disabled")
	}

	analyzerOpts := []pipeline.AnalyzerOption{
		pipeline.WithRetryOptions(retry.WithMaxAttempts(cfg.RetryMaxAttempts), retry.WithBaseDelay(cfg.RetryBaseDelay)),
	}
	if cfg.AnalysisCacheTTL > 0 {
		analyzerOpts = append(analyzerOpts, pipeline.WithCache(pipeline.NewResultCache(cfg.AnalysisCacheTTL)))
	}
	a.Analyzer = pipeline.NewAnalyzer(pipeline.NewExtractor(a.Model), analyzerOpts...)

	a.Runs = pipeline.NoopRunRepository{}
	if cfg.BigQueryProject != "" {
		runs, err := infraBQ.NewAnalysisRunRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Runs = runs
		a.closers = append(a.closers, runs.Close)
	} else {
		log.Info().Msg("No BigQuery project configured - analysis runs are not audited")
	}

	if cfg.GCSBucket != "" {
		archive, err := gcsuploader.NewArchive(ctx, cfg.GCSBucket)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Archive = archive
		a.closers = append(a.closers, archive.Close)
	} else {
		log.Info().Msg("No GCS bucket configured - images are not archived")
	}

	return a, nil
}

// OpenLedger opens the configured ledger store. SQLite stores must be closed.
func OpenLedger(cfg *config.Config) (ledger.Store, error) {
	switch cfg.LedgerBackend {
	case config.LedgerSQLite:
		store, err := sqlite.Open(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("OpenLedger: %w", err)
		}
		return store, nil
	case config.LedgerMemory, "":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("OpenLedger: unknown ledger backend %q", cfg.LedgerBackend)
	}
}

// Orchestrator returns the chat agent on the configured model.
func (a *App) Orchestrator() *agent.Orchestrator {
	return agent.NewOrchestrator(a.Model, agent.WithMaxIterations(a.Config.AgentMaxIterations))
}

// Pipeline returns the async analysis pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	deps := pipeline.PipelineDeps{
		Analyzer:  a.Analyzer,
		Runs:      a.Runs,
		Ledger:    a.Ledger,
		ModelName: a.Model.Model(),
	}
	if a.Archive != nil {
		deps.Archive = a.Archive
	}
	return pipeline.NewAnalysisPipeline(deps)
}

// JobHandler runs analysis jobs through Pipeline.
func (a *App) JobHandler() jobs.JobHandler {
	var fetcher worker.ImageFetcher
	if a.Archive != nil {
		fetcher = a.Archive
	}
	return worker.NewAnalysisJobHandler(a.Pipeline(), fetcher)
}

// NewQueue opens the configured job queue. The caller closes it.
func (a *App) NewQueue() (JobQueue, error) {
	switch a.Config.JobQueue {
	case config.QueueAMQP:
		q, err := amqp.NewQueue(amqp.Config{
			URL:            a.Config.AMQPURL,
			Exchange:       a.Config.AMQPExchange,
			Queue:          a.Config.AMQPQueue,
			Workers:        a.Config.WorkerCount,
			RetryBaseDelay: a.Config.RetryBaseDelay,
		}, a.JobStore)
		if err != nil {
			return nil, fmt.Errorf("NewQueue: %w", err)
		}
		return q, nil
	case config.QueueMemory, "":
		return inmemory.NewQueue(queueBuffer, a.JobStore,
			inmemory.WithWorkers(a.Config.WorkerCount),
			inmemory.WithRetryBaseDelay(a.Config.RetryBaseDelay),
		), nil
	default:
		return nil, fmt.Errorf("NewQueue: unknown job queue %q", a.Config.JobQueue)
	}
}

// Close releases every opened resource, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.log.Error().Err(err).Msg("Failed to close resources")
		return err
	}
	return nil
}
