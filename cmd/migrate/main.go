package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Harikeshav-R/Penny/internal/config"
	infraBQ "github.com/Harikeshav-R/Penny/internal/infra/bigquery"
	"github.com/Harikeshav-R/Penny/internal/ledger/sqlite"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/rs/zerolog"
)

const (
	targetSQLite   = "sqlite"
	targetBigQuery = "bigquery"
)

type options struct {
	target    string
	dbPath    string
	projectID string
	datasetID string
	appliedBy string
}

func parseFlags(args []string, cfg *config.Config) (*options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	opts := &options{}
	fs.StringVar(&opts.target, "target", targetSQLite, "Migration target: sqlite or bigquery")
	fs.StringVar(&opts.dbPath, "db", cfg.SQLiteDBPath, "SQLite ledger path")
	fs.StringVar(&opts.projectID, "project", cfg.BigQueryProject, "GCP project ID (bigquery target)")
	fs.StringVar(&opts.datasetID, "dataset", cfg.BigQueryDataset, "BigQuery dataset ID")
	fs.StringVar(&opts.appliedBy, "applied-by", "migrate-cli", "Name recorded in schema_migrations")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch opts.target {
	case targetSQLite:
		if opts.dbPath == "" {
			return nil, fmt.Errorf("-db is required for the sqlite target")
		}
	case targetBigQuery:
		if opts.projectID == "" {
			return nil, fmt.Errorf("-project is required for the bigquery target")
		}
		if opts.datasetID == "" {
			return nil, fmt.Errorf("-dataset is required for the bigquery target")
		}
	default:
		return nil, fmt.Errorf("unknown target %q", opts.target)
	}
	return opts, nil
}

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)

	opts, err := parseFlags(os.Args[1:], cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid flags")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if err := run(ctx, log, opts); err != nil {
		log.Fatal().Err(err).Str("target", opts.target).Msg("Migration failed")
	}
}

func run(ctx context.Context, log zerolog.Logger, opts *options) error {
	switch opts.target {
	case targetBigQuery:
		repo, err := infraBQ.NewAnalysisRunRepository(ctx, opts.projectID, opts.datasetID)
		if err != nil {
			return err
		}
		defer repo.Close()

		applied, err := repo.Migrate(ctx, opts.appliedBy)
		if err != nil {
			return err
		}
		log.Info().
			Int("applied", applied).
			Str("project", opts.projectID).
			Str("dataset", opts.datasetID).
			Msg("BigQuery migrations complete")
	default:
		if err := sqlite.RunMigrations(opts.dbPath); err != nil {
			return err
		}
		log.Info().Str("db", opts.dbPath).Msg("SQLite migrations complete")
	}
	return nil
}
