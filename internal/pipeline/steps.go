package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	bigquerylib "cloud.google.com/go/bigquery"
	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/gcsuploader"
	infra "github.com/Harikeshav-R/Penny/internal/infra/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PipelineStep represents a single step of the asynchronous analysis pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	JobID      string
	OwnerID    uuid.UUID
	Kind       domain.AnalysisKind
	Image      []byte
	ImageURI   string
	HourlyRate *decimal.Decimal
	Record     bool

	RunID          string
	Analysis       *Analysis
	TransactionIDs []uuid.UUID
}

func (s *PipelineState) imageSHA256() string {
	sum := sha256.Sum256(s.Image)
	return hex.EncodeToString(sum[:])
}

// Step 1: StartRunStep opens an analysis run (status=RUNNING).
type StartRunStep struct {
	Runs      RunRepository
	ModelName string
}

func (s *StartRunStep) Execute(ctx context.Context, state *PipelineState) error {
	runID, err := s.Runs.StartAnalysisRun(ctx, &infra.AnalysisRunRow{
		RunID:       uuid.NewString(),
		JobID:       state.JobID,
		OwnerID:     state.OwnerID.String(),
		Kind:        string(state.Kind),
		ImageURI:    state.ImageURI,
		ImageSHA256: state.imageSHA256(),
		ModelName:   s.ModelName,
	})
	if err != nil {
		return err
	}
	state.RunID = runID
	return nil
}

// Step 2: ArchiveImageStep uploads the image unless it already has a URI.
type ArchiveImageStep struct {
	Runs    RunRepository
	Archive ImageArchive
}

func (s *ArchiveImageStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.ImageURI != "" {
		return nil
	}
	mimeType, err := DetectImageType(state.Image)
	if err != nil {
		s.Runs.MarkAnalysisRunFailed(ctx, state.RunID, err)
		return err
	}
	object := gcsuploader.ImageObjectName(state.OwnerID.String(), string(state.Kind), state.imageSHA256(), mimeType)
	uri, err := s.Archive.UploadBytes(ctx, object, state.Image, mimeType)
	if err != nil {
		s.Runs.MarkAnalysisRunFailed(ctx, state.RunID, err)
		return err
	}
	state.ImageURI = uri
	return nil
}

// Step 3: AnalyzeStep runs extraction and aggregation.
type AnalyzeStep struct {
	Runs     RunRepository
	Analyzer *Analyzer
}

func (s *AnalyzeStep) Execute(ctx context.Context, state *PipelineState) error {
	analysis, err := s.Analyzer.Analyze(ctx, AnalyzeInput{
		Kind:       state.Kind,
		Image:      state.Image,
		HourlyRate: state.HourlyRate,
	})
	if err != nil {
		s.Runs.MarkAnalysisRunFailed(ctx, state.RunID, err)
		return err
	}
	state.Analysis = analysis
	return nil
}

// Step 4: StoreModelOutputStep stores the raw model JSON in model_outputs.
type StoreModelOutputStep struct {
	Runs      RunRepository
	ModelName string
}

func (s *StoreModelOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	notes := bigquerylib.NullString{}
	if state.Analysis.Cached {
		notes = bigquerylib.NullString{StringVal: "served from cache", Valid: true}
	}
	err := s.Runs.InsertModelOutput(ctx, &infra.ModelOutputRow{
		OutputID:  uuid.NewString(),
		RunID:     state.RunID,
		OwnerID:   state.OwnerID.String(),
		ModelName: s.ModelName,
		RawJSON:   bigquerylib.NullJSON{JSONVal: string(state.Analysis.Raw), Valid: len(state.Analysis.Raw) > 0},
		CreatedTS: bigquerylib.NullTimestamp{Timestamp: time.Now().UTC(), Valid: true},
		Notes:     notes,
	})
	if err != nil {
		s.Runs.MarkAnalysisRunFailed(ctx, state.RunID, err)
		return err
	}
	return nil
}

// Step 5: RecordTransactionsStep writes one ledger transaction per split when
// the job asked for it.
type RecordTransactionsStep struct {
	Runs   RunRepository
	Ledger TransactionWriter
	Now    func() time.Time
}

func (s *RecordTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if !state.Record {
		return nil
	}

	resp := state.Analysis.Response
	date, err := time.Parse(DateLayout, resp.Date)
	if err != nil {
		date = s.now().UTC()
	}

	for i, split := range resp.Splits {
		id := splitTransactionID(state, i)
		if id != uuid.Nil {
			_, err := s.Ledger.GetTransaction(ctx, state.OwnerID, id)
			if err == nil {
				// Written by an earlier attempt of this job.
				state.TransactionIDs = append(state.TransactionIDs, id)
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				err = fmt.Errorf("RecordTransactionsStep: checking split %d: %w", i, err)
				s.Runs.MarkAnalysisRunFailed(ctx, state.RunID, err)
				return err
			}
		}

		tx := &domain.Transaction{
			ID:       id,
			OwnerID:  state.OwnerID,
			Merchant: resp.Merchant,
			Category: split.Category,
			Amount:   split.Amount,
			Date:     date,
			Icon:     IconForCategory(split.Category),
		}
		if err := s.Ledger.CreateTransaction(ctx, tx); err != nil {
			err = fmt.Errorf("RecordTransactionsStep: %w", err)
			s.Runs.MarkAnalysisRunFailed(ctx, state.RunID, err)
			return err
		}
		state.TransactionIDs = append(state.TransactionIDs, tx.ID)
	}
	return nil
}

// splitTransactionID derives a stable id from the job and split index so a
// retried job finds the transactions it already wrote. Jobs without an id get
// uuid.Nil and a fresh id from the store.
func splitTransactionID(state *PipelineState, index int) uuid.UUID {
	if state.JobID == "" {
		return uuid.Nil
	}
	return uuid.NewSHA1(state.OwnerID, []byte(fmt.Sprintf("%s/split/%d", state.JobID, index)))
}

func (s *RecordTransactionsStep) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Step 6: MarkSuccessStep marks the run as SUCCESS with its summary.
type MarkSuccessStep struct {
	Runs RunRepository
}

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	resp := state.Analysis.Response
	return s.Runs.MarkAnalysisRunSucceeded(ctx, state.RunID, infra.RunSummary{
		ItemCount:   len(resp.RawItems),
		TotalAmount: resp.TotalAmount.Rat(),
	})
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// PipelineDeps wires the analysis pipeline. Runs and Archive are optional;
// Ledger is only needed for jobs that record transactions.
type PipelineDeps struct {
	Analyzer  *Analyzer
	Runs      RunRepository
	Archive   ImageArchive
	Ledger    TransactionWriter
	ModelName string
	Now       func() time.Time
}

// NewAnalysisPipeline builds the standard pipeline:
// start run, archive image, analyze, store model output, record
// transactions, mark success.
func NewAnalysisPipeline(deps PipelineDeps) *Pipeline {
	runs := deps.Runs
	if runs == nil {
		runs = NoopRunRepository{}
	}

	steps := []PipelineStep{
		&StartRunStep{Runs: runs, ModelName: deps.ModelName},
	}
	if deps.Archive != nil {
		steps = append(steps, &ArchiveImageStep{Runs: runs, Archive: deps.Archive})
	}
	steps = append(steps,
		&AnalyzeStep{Runs: runs, Analyzer: deps.Analyzer},
		&StoreModelOutputStep{Runs: runs, ModelName: deps.ModelName},
	)
	if deps.Ledger != nil {
		steps = append(steps, &RecordTransactionsStep{Runs: runs, Ledger: deps.Ledger, Now: deps.Now})
	}
	steps = append(steps, &MarkSuccessStep{Runs: runs})

	return NewPipeline(steps...)
}

// IconForCategory picks a frontend icon name from category keywords.
func IconForCategory(category string) string {
	c := strings.ToLower(category)
	switch {
	case containsAny(c, "food", "dining", "drink", "restaurant", "grocer"):
		return "Pizza"
	case containsAny(c, "rent", "housing"):
		return "Home"
	case containsAny(c, "transport", "uber", "gas", "fuel"):
		return "Car"
	case containsAny(c, "sub", "netflix", "spotify"):
		return "RefreshCw"
	case containsAny(c, "shop", "amazon"):
		return "ShoppingBag"
	case containsAny(c, "health", "pharmacy"):
		return "Heart"
	case containsAny(c, "utilit"):
		return "Zap"
	case containsAny(c, "entertain"):
		return "Film"
	default:
		return "DollarSign"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
