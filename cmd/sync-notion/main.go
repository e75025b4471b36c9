package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/Harikeshav-R/Penny/internal/app"
	"github.com/Harikeshav-R/Penny/internal/config"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/Harikeshav-R/Penny/internal/notionsync"
	"github.com/google/uuid"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)

	ownerStr := flag.String("owner", "", "Owner UUID whose ledger is exported (required)")
	sinceStr := flag.String("since", "", "Only export transactions on or after YYYY-MM-DD")
	prune := flag.Bool("prune", false, "Archive pages whose transaction no longer exists")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if *ownerStr == "" {
		log.Fatal().Msg("Error: --owner is required")
	}
	owner, err := uuid.Parse(*ownerStr)
	if err != nil {
		log.Fatal().Err(err).Str("owner", *ownerStr).Msg("Error: --owner must be a UUID")
	}
	if cfg.NotionToken == "" {
		log.Fatal().Msg("Error: NOTION_TOKEN is not set")
	}

	var since time.Time
	if *sinceStr != "" {
		since, err = time.Parse("2006-01-02", *sinceStr)
		if err != nil {
			log.Fatal().Err(err).Str("since", *sinceStr).Msg("Error: invalid since format, expected YYYY-MM-DD")
		}
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := app.OpenLedger(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	if c, ok := store.(interface{ Close() error }); ok {
		defer c.Close()
	}

	log.Info().
		Str("owner", owner.String()).
		Str("since", *sinceStr).
		Bool("prune", *prune).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	result, err := notionsync.SyncTransactions(ctx, store, notionsync.NewNotionClient(cfg.NotionToken), cfg.NotionDBID, notionsync.SyncOptions{
		Owner:  owner,
		Since:  since,
		Prune:  *prune,
		DryRun: *dryRun,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
		result.Created, result.Updated, result.Archived, result.Failed)
}
