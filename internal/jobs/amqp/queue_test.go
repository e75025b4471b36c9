package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/jobs"
	"github.com/Harikeshav-R/Penny/internal/jobs/inmemory"
	"github.com/google/uuid"
)

type published struct {
	bodies [][]byte
}

func (p *published) publish(ctx context.Context, body []byte) error {
	p.bodies = append(p.bodies, body)
	return nil
}

func newTestQueue(t *testing.T) (*Queue, *inmemory.Store, *published) {
	t.Helper()
	store := inmemory.NewStore()
	pub := &published{}
	q := newQueue(Config{Exchange: "penny", Queue: "analysis_jobs", Workers: 2, RetryBaseDelay: time.Millisecond}, store)
	q.publish = pub.publish
	return q, store, pub
}

func encode(t *testing.T, job *jobs.AnalyzeImageJob) []byte {
	t.Helper()
	job.Prepare(time.Now())
	body, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestPublishAnalyzeImage(t *testing.T) {
	q, store, pub := newTestQueue(t)
	job := &jobs.AnalyzeImageJob{OwnerID: uuid.New(), Kind: domain.AnalysisKindReceipt, ImageURI: "gs://b/o.jpg"}

	if err := q.PublishAnalyzeImage(context.Background(), job); err != nil {
		t.Fatalf("PublishAnalyzeImage() error = %v", err)
	}
	if job.JobID == "" || job.Status != jobs.JobStatusPending || job.MaxRetries != jobs.DefaultMaxRetries {
		t.Errorf("job defaults not applied: %+v", job)
	}
	if len(pub.bodies) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.bodies))
	}
	var got jobs.AnalyzeImageJob
	if err := json.Unmarshal(pub.bodies[0], &got); err != nil || got.JobID != job.JobID || got.ImageURI != job.ImageURI {
		t.Errorf("unexpected message %s (%v)", pub.bodies[0], err)
	}
	if _, err := store.GetJob(context.Background(), job.JobID); err != nil {
		t.Errorf("job not saved: %v", err)
	}
}

func TestProcess(t *testing.T) {
	errFlaky := errors.New("model overloaded")

	tests := []struct {
		name          string
		handlerErr    error
		retryCount    int
		wantStatus    jobs.JobStatus
		wantRepublish bool
	}{
		{"success", nil, 0, jobs.JobStatusCompleted, false},
		{"transient failure is retried", errFlaky, 0, jobs.JobStatusPending, true},
		{"retries exhausted", errFlaky, jobs.DefaultMaxRetries, jobs.JobStatusFailed, false},
		{"configuration error is not retried", domain.NewConfigurationError("GEMINI_API_KEY is not set"), 0, jobs.JobStatusFailed, false},
		{"validation error is not retried", domain.NewValidationError("image is empty"), 0, jobs.JobStatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, store, pub := newTestQueue(t)
			job := &jobs.AnalyzeImageJob{OwnerID: uuid.New(), Kind: domain.AnalysisKindCart, RetryCount: tt.retryCount}
			body := encode(t, job)

			var handled int
			got := q.process(context.Background(), body, func(ctx context.Context, j jobs.Job) error {
				handled++
				if j.GetID() != job.JobID || j.GetStatus() != jobs.JobStatusRunning {
					t.Errorf("handler got %s in status %s", j.GetID(), j.GetStatus())
				}
				return tt.handlerErr
			})

			if got != outcomeAck {
				t.Errorf("outcome = %v, want ack", got)
			}
			if handled != 1 {
				t.Errorf("handler called %d times, want 1", handled)
			}
			if (len(pub.bodies) == 1) != tt.wantRepublish {
				t.Errorf("republished %d messages, want republish=%v", len(pub.bodies), tt.wantRepublish)
			}

			saved, err := store.GetJob(context.Background(), job.JobID)
			if err != nil {
				t.Fatalf("GetJob() error = %v", err)
			}
			if saved.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", saved.Status, tt.wantStatus)
			}
			if tt.wantRepublish && saved.RetryCount != tt.retryCount+1 {
				t.Errorf("RetryCount = %d, want %d", saved.RetryCount, tt.retryCount+1)
			}
		})
	}
}

func TestProcess_RejectsMalformedMessages(t *testing.T) {
	q, _, _ := newTestQueue(t)
	handler := func(ctx context.Context, j jobs.Job) error {
		t.Fatal("handler must not run")
		return nil
	}

	for _, body := range []string{"not json", `{"kind":"receipt"}`} {
		if got := q.process(context.Background(), []byte(body), handler); got != outcomeReject {
			t.Errorf("process(%q) = %v, want reject", body, got)
		}
	}
}

func TestProcess_CancelDuringBackoffRepublishes(t *testing.T) {
	q, store, pub := newTestQueue(t)
	q.baseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := &jobs.AnalyzeImageJob{OwnerID: uuid.New(), Kind: domain.AnalysisKindReceipt}
	got := q.process(ctx, encode(t, job), func(context.Context, jobs.Job) error {
		cancel()
		return errors.New("model overloaded")
	})

	if got != outcomeAck {
		t.Errorf("outcome = %v, want ack", got)
	}
	if len(pub.bodies) != 1 {
		t.Fatalf("republished %d messages, want 1", len(pub.bodies))
	}

	saved, err := store.GetJob(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if saved.Status != jobs.JobStatusPending || saved.RetryCount != 1 {
		t.Errorf("job = status %s retries %d, want pending with 1 retry", saved.Status, saved.RetryCount)
	}
}
