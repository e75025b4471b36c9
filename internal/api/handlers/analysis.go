package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Harikeshav-R/Penny/internal/api/middleware"
	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/gcsuploader"
	"github.com/Harikeshav-R/Penny/internal/jobs"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/Harikeshav-R/Penny/internal/pipeline"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultMaxImageBytes bounds uploaded images.
const DefaultMaxImageBytes = 10 << 20

// ImageAnalyzer runs the receipt and cart pipelines. *pipeline.Analyzer
// implements it.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, in pipeline.AnalyzeInput) (*pipeline.Analysis, error)
}

// ProfileReader supplies the stored hourly rate for cart estimates.
type ProfileReader interface {
	GetProfile(ctx context.Context, owner uuid.UUID) (*domain.Profile, error)
}

// ImageUploader archives images before they are queued. Optional.
type ImageUploader interface {
	UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// AnalysisHandler serves synchronous analysis and enqueues async jobs.
type AnalysisHandler struct {
	analyzer  ImageAnalyzer
	profiles  ProfileReader
	publisher jobs.Publisher
	uploader  ImageUploader
	maxBytes  int64
}

// AnalysisOption customises an AnalysisHandler.
type AnalysisOption func(*AnalysisHandler)

// WithUploader archives queued images instead of embedding them in the job.
func WithUploader(u ImageUploader) AnalysisOption {
	return func(h *AnalysisHandler) { h.uploader = u }
}

// WithMaxImageBytes overrides DefaultMaxImageBytes.
func WithMaxImageBytes(n int64) AnalysisOption {
	return func(h *AnalysisHandler) { h.maxBytes = n }
}

// NewAnalysisHandler creates an analysis handler. profiles and publisher
// may be nil.
func NewAnalysisHandler(analyzer ImageAnalyzer, profiles ProfileReader, publisher jobs.Publisher, opts ...AnalysisOption) *AnalysisHandler {
	h := &AnalysisHandler{
		analyzer:  analyzer,
		profiles:  profiles,
		publisher: publisher,
		maxBytes:  DefaultMaxImageBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AnalyzeReceipt handles POST /api/receipts/analyze
func (h *AnalysisHandler) AnalyzeReceipt(w http.ResponseWriter, r *http.Request) {
	h.analyze(w, r, domain.AnalysisKindReceipt)
}

// AnalyzeCart handles POST /api/cart/analyze
func (h *AnalysisHandler) AnalyzeCart(w http.ResponseWriter, r *http.Request) {
	h.analyze(w, r, domain.AnalysisKindCart)
}

func (h *AnalysisHandler) analyze(w http.ResponseWriter, r *http.Request, kind domain.AnalysisKind) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	owner, _ := middleware.OwnerFromContext(ctx)

	image, err := h.readImage(w, r)
	if err != nil {
		writeAppError(w, &log, err, "read image")
		return
	}

	var rate *decimal.Decimal
	if kind == domain.AnalysisKindCart {
		if rate, err = h.hourlyRate(ctx, r, owner); err != nil {
			writeAppError(w, &log, err, "resolve hourly rate")
			return
		}
	}

	res, err := h.analyzer.Analyze(ctx, pipeline.AnalyzeInput{Kind: kind, Image: image, HourlyRate: rate})
	if err != nil {
		writeAppError(w, &log, err, "analyze "+string(kind))
		return
	}

	log.Info().
		Str("kind", string(kind)).
		Int("splits", len(res.Response.Splits)).
		Bool("cached", res.Cached).
		Msg("Analysis served")

	middleware.WriteJSON(w, http.StatusOK, res.Response)
}

// EnqueueAnalysis handles POST /api/receipts/jobs. Form fields: image,
// kind (receipt|cart, default receipt), hourly_rate, record.
func (h *AnalysisHandler) EnqueueAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	owner, _ := middleware.OwnerFromContext(ctx)

	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Job queue is not configured")
		return
	}

	image, err := h.readImage(w, r)
	if err != nil {
		writeAppError(w, &log, err, "read image")
		return
	}

	kind := domain.AnalysisKind(strings.ToLower(strings.TrimSpace(r.FormValue("kind"))))
	if kind == "" {
		kind = domain.AnalysisKindReceipt
	}
	if !kind.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "kind must be receipt or cart")
		return
	}

	record := false
	if v := r.FormValue("record"); v != "" {
		if record, err = strconv.ParseBool(v); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "record must be true or false")
			return
		}
	}

	job := &jobs.AnalyzeImageJob{OwnerID: owner, Kind: kind, Record: record}
	if kind == domain.AnalysisKindCart {
		if job.HourlyRate, err = h.hourlyRate(ctx, r, owner); err != nil {
			writeAppError(w, &log, err, "resolve hourly rate")
			return
		}
	}

	if h.uploader != nil {
		mimeType, err := pipeline.DetectImageType(image)
		if err != nil {
			writeAppError(w, &log, err, "detect image type")
			return
		}
		sum := sha256.Sum256(image)
		object := gcsuploader.ImageObjectName(owner.String(), string(kind), hex.EncodeToString(sum[:]), mimeType)
		uri, err := h.uploader.UploadBytes(ctx, object, image, mimeType)
		if err != nil {
			writeAppError(w, &log, err, "archive image")
			return
		}
		job.ImageURI = uri
	} else {
		job.Image = image
	}

	if err := h.publisher.PublishAnalyzeImage(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue analysis job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue analysis job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("kind", string(kind)).Msg("Analysis job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

func (h *AnalysisHandler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		return nil, domain.NewValidationError("request must be multipart/form-data with an image field")
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, domain.NewValidationError("image is required")
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		return nil, domain.NewValidationError("image could not be read")
	}
	if int64(len(image)) > h.maxBytes {
		return nil, domain.NewValidationError("image is too large")
	}
	return image, nil
}

// hourlyRate prefers the form value and falls back to the owner's profile.
func (h *AnalysisHandler) hourlyRate(ctx context.Context, r *http.Request, owner uuid.UUID) (*decimal.Decimal, error) {
	if v := strings.TrimSpace(r.FormValue("hourly_rate")); v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil || rate.IsNegative() {
			return nil, domain.NewValidationError("hourly_rate must be a non-negative number")
		}
		return &rate, nil
	}

	if h.profiles == nil || owner == uuid.Nil {
		return nil, nil
	}
	profile, err := h.profiles.GetProfile(ctx, owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return profile.HourlyRate, nil
}
