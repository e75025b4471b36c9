package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// AnalysisRunRepository records extraction runs and raw model outputs in
// BigQuery. It holds a shared client so every call reuses one connection.
type AnalysisRunRepository struct {
	client *bigquery.Client
	ds     Dataset
}

// NewAnalysisRunRepository creates a repository with its own BigQuery client.
func NewAnalysisRunRepository(ctx context.Context, projectID, datasetID string) (*AnalysisRunRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewAnalysisRunRepository: creating client: %w", err)
	}
	return &AnalysisRunRepository{
		client: client,
		ds:     Dataset{ProjectID: projectID, DatasetID: datasetID},
	}, nil
}

// Close closes the BigQuery client connection.
func (r *AnalysisRunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *AnalysisRunRepository) StartAnalysisRun(ctx context.Context, row *AnalysisRunRow) (string, error) {
	return StartAnalysisRunWithClient(ctx, r.client, r.ds, row)
}

func (r *AnalysisRunRepository) MarkAnalysisRunFailed(ctx context.Context, runID string, runErr error) {
	MarkAnalysisRunFailedWithClient(ctx, r.client, r.ds, runID, runErr)
}

func (r *AnalysisRunRepository) MarkAnalysisRunSucceeded(ctx context.Context, runID string, summary RunSummary) error {
	return MarkAnalysisRunSucceededWithClient(ctx, r.client, r.ds, runID, summary)
}

func (r *AnalysisRunRepository) InsertModelOutput(ctx context.Context, row *ModelOutputRow) error {
	return InsertModelOutputWithClient(ctx, r.client, r.ds, row)
}

func (r *AnalysisRunRepository) ListAnalysisRuns(ctx context.Context, ownerID string, limit int) ([]*AnalysisRunRow, error) {
	return ListAnalysisRunsWithClient(ctx, r.client, r.ds, ownerID, limit)
}
