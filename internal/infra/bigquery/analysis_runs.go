package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Run statuses written to analysis_runs.status.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// Parser identifiers recorded on every run.
const (
	ParserType    = "GEMINI_VISION"
	ParserVersion = "v1"
)

type AnalysisRunRow struct {
	RunID   string `bigquery:"run_id"`   // REQUIRED
	JobID   string `bigquery:"job_id"`   // NULLABLE
	OwnerID string `bigquery:"owner_id"` // REQUIRED
	Kind    string `bigquery:"kind"`     // REQUIRED: receipt | cart

	ImageURI    string `bigquery:"image_uri"`    // NULLABLE
	ImageSHA256 string `bigquery:"image_sha256"` // NULLABLE

	RunDate    civil.Date             `bigquery:"run_date"`    // REQUIRED (partition column)
	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	ParserType    string `bigquery:"parser_type"`
	ParserVersion string `bigquery:"parser_version"`
	ModelName     string `bigquery:"model_name"`

	Status       string `bigquery:"status"`
	ErrorMessage string `bigquery:"error_message"`

	ItemCount   bigquery.NullInt64 `bigquery:"item_count"`   // NULLABLE
	TotalAmount *big.Rat           `bigquery:"total_amount"` // NULLABLE NUMERIC
}

// RunSummary is written when a run succeeds.
type RunSummary struct {
	ItemCount   int
	TotalAmount *big.Rat
}
