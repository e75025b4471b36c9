package bigquery

import "cloud.google.com/go/bigquery"

type ModelOutputRow struct {
	OutputID string `bigquery:"output_id"` // REQUIRED
	RunID    string `bigquery:"run_id"`    // REQUIRED
	OwnerID  string `bigquery:"owner_id"`  // REQUIRED

	ModelName string            `bigquery:"model_name"` // REQUIRED
	RawJSON   bigquery.NullJSON `bigquery:"raw_json"`   // REQUIRED (JSON)

	CreatedTS bigquery.NullTimestamp `bigquery:"created_ts"` // REQUIRED
	Notes     bigquery.NullString    `bigquery:"notes"`      // NULLABLE
}
