package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/ledger"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/google/uuid"
	"github.com/jomei/notionapi"
)

const (
	// BatchSize is the number of transactions logged as one progress batch.
	BatchSize = 100

	// exportLimit bounds how many ledger transactions one export reads.
	exportLimit = 10000

	queryPageSize = 100
)

// SyncOptions controls one export run.
type SyncOptions struct {
	Owner uuid.UUID
	// Since limits the export to transactions dated on or after it. Zero
	// exports the whole ledger.
	Since time.Time
	// Prune archives pages whose transaction is no longer in the exported set.
	Prune  bool
	DryRun bool
}

// SyncResult counts what an export did, or would have done on a dry run.
type SyncResult struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// SyncTransactions mirrors one owner's ledger transactions into a Notion
// database. Pages are keyed by the "Transaction ID" property, so running it
// twice updates pages in place instead of duplicating them.
func SyncTransactions(ctx context.Context, source TransactionLister, notion NotionService, databaseID string, opts SyncOptions) (*SyncResult, error) {
	log := logger.Component(logger.FromContext(ctx), "notionsync")

	if databaseID == "" {
		return nil, domain.NewConfigurationError("NOTION_DB_ID is not set")
	}
	if opts.Owner == uuid.Nil {
		return nil, domain.NewValidationError("owner is required")
	}

	log.Info().
		Str("owner_id", opts.Owner.String()).
		Time("since", opts.Since).
		Bool("prune", opts.Prune).
		Bool("dry_run", opts.DryRun).
		Msg("Starting transaction export to Notion")

	transactions, err := source.ListTransactions(ctx, opts.Owner, ledger.TransactionFilter{
		Since: opts.Since,
		Limit: exportLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("SyncTransactions: list transactions: %w", err)
	}
	log.Info().Int("transaction_count", len(transactions)).Msg("Retrieved transactions from ledger")

	pages, err := queryAllNotionPages(ctx, notion, databaseID)
	if err != nil {
		return nil, fmt.Errorf("SyncTransactions: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		if id := extractTransactionID(page); id != "" {
			existing[id] = string(page.ID)
		}
	}

	result := &SyncResult{}

	if opts.Prune {
		wanted := make(map[string]bool, len(transactions))
		for _, tx := range transactions {
			wanted[tx.ID.String()] = true
		}
		archiveStale(ctx, notion, pages, wanted, opts.DryRun, result)
	}

	for i := 0; i < len(transactions); i += BatchSize {
		end := min(i+BatchSize, len(transactions))
		log.Debug().
			Int("batch_start", i).
			Int("batch_end", end).
			Msg("Processing batch")

		for _, tx := range transactions[i:end] {
			upsertTransaction(ctx, notion, databaseID, tx, existing[tx.ID.String()], opts.DryRun, result)
		}
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("archived", result.Archived).
		Int("failed", result.Failed).
		Bool("dry_run", opts.DryRun).
		Msg("Transaction export to Notion completed")

	return result, nil
}

func upsertTransaction(ctx context.Context, notion NotionService, databaseID string, tx domain.Transaction, pageID string, dryRun bool, result *SyncResult) {
	log := logger.FromContext(ctx).With().
		Str("transaction_id", tx.ID.String()).
		Str("page_id", pageID).
		Logger()
	props := TransactionToNotionProperties(tx)

	if pageID != "" {
		if dryRun {
			log.Info().Msg("[DRY RUN] Would update Notion page")
			result.Updated++
			return
		}
		if _, err := notion.UpdatePage(ctx, pageID, props); err != nil {
			log.Warn().Err(err).Msg("Failed to update Notion page")
			result.Failed++
			return
		}
		result.Updated++
		return
	}

	if dryRun {
		log.Info().Str("merchant", tx.Merchant).Msg("[DRY RUN] Would create Notion page")
		result.Created++
		return
	}
	page, err := notion.CreatePage(ctx, databaseID, props)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create Notion page")
		result.Failed++
		return
	}
	log.Debug().Str("page_id", string(page.ID)).Msg("Created Notion page")
	result.Created++
}

// archiveStale archives pages without a transaction id and pages whose
// transaction is not in wanted.
func archiveStale(ctx context.Context, notion NotionService, pages []notionapi.Page, wanted map[string]bool, dryRun bool, result *SyncResult) {
	log := logger.FromContext(ctx)

	for _, page := range pages {
		id := extractTransactionID(page)
		if id != "" && wanted[id] {
			continue
		}

		if dryRun {
			log.Info().
				Str("transaction_id", id).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			result.Archived++
			continue
		}
		if err := notion.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			result.Failed++
			continue
		}
		result.Archived++
	}
}

// queryAllNotionPages follows the query cursor until the database is drained.
func queryAllNotionPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: queryPageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}
