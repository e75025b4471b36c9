package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const (
	analysisRunsTable = "analysis_runs"
	maxErrorLen       = 2000
)

// Dataset addresses the tables of one BigQuery dataset.
type Dataset struct {
	ProjectID string
	DatasetID string
}

func (d Dataset) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, name)
}

// StartAnalysisRunWithClient inserts row with status=RUNNING and returns the
// generated run_id. RunID, StartedTS and RunDate are filled when empty.
func StartAnalysisRunWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, row *AnalysisRunRow) (string, error) {
	if row.RunID == "" {
		row.RunID = uuid.NewString()
	}
	if row.StartedTS.IsZero() {
		row.StartedTS = time.Now().UTC()
	}
	if row.RunDate.IsZero() {
		row.RunDate = civil.DateOf(row.StartedTS)
	}
	if row.ParserType == "" {
		row.ParserType = ParserType
	}
	if row.ParserVersion == "" {
		row.ParserVersion = ParserVersion
	}
	row.Status = RunStatusRunning

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id, job_id, owner_id, kind,
			image_uri, image_sha256,
			run_date, started_ts,
			parser_type, parser_version, model_name,
			status
		)
		VALUES (
			@run_id, @job_id, @owner_id, @kind,
			@image_uri, @image_sha256,
			@run_date, @started_ts,
			@parser_type, @parser_version, @model_name,
			@status
		)
	`, ds.table(analysisRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "job_id", Value: row.JobID},
		{Name: "owner_id", Value: row.OwnerID},
		{Name: "kind", Value: row.Kind},
		{Name: "image_uri", Value: row.ImageURI},
		{Name: "image_sha256", Value: row.ImageSHA256},
		{Name: "run_date", Value: row.RunDate},
		{Name: "started_ts", Value: row.StartedTS},
		{Name: "parser_type", Value: row.ParserType},
		{Name: "parser_version", Value: row.ParserVersion},
		{Name: "model_name", Value: row.ModelName},
		{Name: "status", Value: row.Status},
	}

	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("StartAnalysisRun: %w", err)
	}
	return row.RunID, nil
}

// MarkAnalysisRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Failures are logged, not returned.
func MarkAnalysisRunFailedWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, runID string, runErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		if len(errMsg) > maxErrorLen {
			errMsg = errMsg[:maxErrorLen]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, ds.table(analysisRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusFailed},
		{Name: "finished_ts", Value: time.Now().UTC()},
		{Name: "error_message", Value: errMsg},
		{Name: "run_id", Value: runID},
	}

	if err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkAnalysisRunFailed: update failed")
	}
}

// MarkAnalysisRunSucceededWithClient sets status=SUCCESS, finished_ts and the
// run summary, and clears error_message.
func MarkAnalysisRunSucceededWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, runID string, summary RunSummary) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    item_count = @item_count,
		    total_amount = @total_amount
		WHERE run_id = @run_id
	`, ds.table(analysisRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now().UTC()},
		{Name: "item_count", Value: int64(summary.ItemCount)},
		{Name: "total_amount", Value: summary.TotalAmount},
		{Name: "run_id", Value: runID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkAnalysisRunSucceeded: %w", err)
	}
	return nil
}

// ListAnalysisRunsWithClient returns the newest runs of one owner.
func ListAnalysisRunsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, ownerID string, limit int) ([]*AnalysisRunRow, error) {
	if limit <= 0 {
		limit = 50
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id, job_id, owner_id, kind,
			image_uri, image_sha256,
			run_date, started_ts, finished_ts,
			parser_type, parser_version, model_name,
			status, error_message,
			item_count, total_amount
		FROM %s
		WHERE owner_id = @owner_id
		ORDER BY started_ts DESC
		LIMIT @limit
	`, ds.table(analysisRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAnalysisRuns: reading query: %w", err)
	}

	var runs []*AnalysisRunRow
	for {
		var row AnalysisRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAnalysisRuns: iterating: %w", err)
		}
		runs = append(runs, &row)
	}

	return runs, nil
}

// runDML runs a DML statement and waits for it to finish.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
