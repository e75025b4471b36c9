package notionsync

import (
	"context"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/ledger"
	"github.com/google/uuid"
	"github.com/jomei/notionapi"
)

// NotionService is the part of the Notion API the export uses.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, query *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	ArchivePage(ctx context.Context, pageID string) error
}

// TransactionLister is the read side of ledger.Store the export needs.
type TransactionLister interface {
	ListTransactions(ctx context.Context, owner uuid.UUID, filter ledger.TransactionFilter) ([]domain.Transaction, error)
}
