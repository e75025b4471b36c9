// Package worker runs queued analysis jobs through the analysis pipeline.
package worker

import (
	"context"
	"fmt"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/gcsuploader"
	"github.com/Harikeshav-R/Penny/internal/jobs"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/Harikeshav-R/Penny/internal/pipeline"
)

// Runner executes the analysis pipeline. *pipeline.Pipeline implements it.
type Runner interface {
	Execute(ctx context.Context, state *pipeline.PipelineState) error
}

// ImageFetcher loads archived images. *gcsuploader.Archive implements it.
type ImageFetcher interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// NewAnalysisJobHandler returns the JobHandler for analysis jobs. fetcher may
// be nil when jobs always embed their image.
func NewAnalysisJobHandler(runner Runner, fetcher ImageFetcher) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		analyzeJob, ok := job.(*jobs.AnalyzeImageJob)
		if !ok {
			return domain.NewValidationError(fmt.Sprintf("unexpected job type: %T", job))
		}

		log := logger.Component(logger.FromContext(ctx), "worker").With().
			Str("job_id", analyzeJob.JobID).
			Str("owner_id", analyzeJob.OwnerID.String()).
			Str("kind", string(analyzeJob.Kind)).
			Logger()
		ctx = logger.WithContext(ctx, log)

		image, err := loadImage(ctx, analyzeJob, fetcher)
		if err != nil {
			log.Error().Err(err).Str("image_uri", analyzeJob.ImageURI).Msg("Failed to load job image")
			return err
		}

		log.Info().Msg("Processing analysis job")

		state := &pipeline.PipelineState{
			JobID:      analyzeJob.JobID,
			OwnerID:    analyzeJob.OwnerID,
			Kind:       analyzeJob.Kind,
			Image:      image,
			ImageURI:   analyzeJob.ImageURI,
			HourlyRate: analyzeJob.HourlyRate,
			Record:     analyzeJob.Record,
		}
		if err := runner.Execute(ctx, state); err != nil {
			analyzeJob.RunID = state.RunID
			log.Error().Err(err).Str("run_id", state.RunID).Msg("Pipeline execution failed")
			return err
		}

		analyzeJob.RunID = state.RunID
		analyzeJob.ImageURI = state.ImageURI
		analyzeJob.Result = state.Analysis.Response
		analyzeJob.TransactionIDs = state.TransactionIDs

		log.Info().
			Str("run_id", state.RunID).
			Int("splits", len(state.Analysis.Response.Splits)).
			Int("transactions", len(state.TransactionIDs)).
			Msg("Pipeline execution completed successfully")
		return nil
	}
}

func loadImage(ctx context.Context, job *jobs.AnalyzeImageJob, fetcher ImageFetcher) ([]byte, error) {
	if len(job.Image) > 0 {
		return job.Image, nil
	}
	if job.ImageURI == "" {
		return nil, domain.NewValidationError("job has neither image bytes nor image URI")
	}
	if fetcher == nil {
		return nil, domain.NewConfigurationError("GCS_BUCKET is not set: cannot fetch " + job.ImageURI)
	}

	image, err := fetcher.FetchFromGCS(ctx, job.ImageURI)
	if err != nil {
		return nil, fmt.Errorf("loadImage: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("file", gcsuploader.ExtractFilenameFromGCSURI(job.ImageURI)).
		Int("bytes", len(image)).
		Msg("Fetched archived image")
	return image, nil
}
