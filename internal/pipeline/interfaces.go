package pipeline

import (
	"context"

	"github.com/Harikeshav-R/Penny/internal/domain"
	infra "github.com/Harikeshav-R/Penny/internal/infra/bigquery"
	"github.com/Harikeshav-R/Penny/internal/llm"
	"github.com/google/uuid"
)

// StructuredCaller is the model side of the extractor. Ready reports a
// configuration error when the model credential is absent.
type StructuredCaller interface {
	Ready() error
	GenerateJSON(ctx context.Context, req llm.StructuredRequest) ([]byte, error)
}

// RunRepository records analysis runs and raw model output for auditing.
type RunRepository interface {
	StartAnalysisRun(ctx context.Context, row *infra.AnalysisRunRow) (string, error)
	InsertModelOutput(ctx context.Context, row *infra.ModelOutputRow) error
	MarkAnalysisRunFailed(ctx context.Context, runID string, runErr error)
	MarkAnalysisRunSucceeded(ctx context.Context, runID string, summary infra.RunSummary) error
}

// ImageArchive stores analysed images and returns their URI.
type ImageArchive interface {
	UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// TransactionWriter is the slice of ledger.Store the pipeline writes to.
type TransactionWriter interface {
	GetTransaction(ctx context.Context, owner, id uuid.UUID) (*domain.Transaction, error)
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
}

// NoopRunRepository discards run bookkeeping when no audit store is configured.
type NoopRunRepository struct{}

func (NoopRunRepository) StartAnalysisRun(ctx context.Context, row *infra.AnalysisRunRow) (string, error) {
	return row.RunID, nil
}

func (NoopRunRepository) InsertModelOutput(ctx context.Context, row *infra.ModelOutputRow) error {
	return nil
}

func (NoopRunRepository) MarkAnalysisRunFailed(ctx context.Context, runID string, runErr error) {}

func (NoopRunRepository) MarkAnalysisRunSucceeded(ctx context.Context, runID string, summary infra.RunSummary) error {
	return nil
}
