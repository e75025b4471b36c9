package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const modelOutputsTable = "model_outputs"

// InsertModelOutputWithClient inserts a single ModelOutputRow using DML
// INSERT to avoid streaming buffer issues.
func InsertModelOutputWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, row *ModelOutputRow) error {
	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s (
			output_id, run_id, owner_id,
			model_name, raw_json,
			created_ts, notes
		)
		VALUES (
			@output_id, @run_id, @owner_id,
			@model_name, @raw_json,
			@created_ts, @notes
		)
	`, ds.table(modelOutputsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "run_id", Value: row.RunID},
		{Name: "owner_id", Value: row.OwnerID},
		{Name: "model_name", Value: row.ModelName},
		{Name: "raw_json", Value: row.RawJSON},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "notes", Value: row.Notes},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertModelOutput: %w", err)
	}
	return nil
}
