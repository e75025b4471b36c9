package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Harikeshav-R/Penny/internal/agent"
	"github.com/Harikeshav-R/Penny/internal/api/handlers"
	"github.com/Harikeshav-R/Penny/internal/auth"
	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/jobs"
	"github.com/Harikeshav-R/Penny/internal/jobs/inmemory"
	"github.com/Harikeshav-R/Penny/internal/ledger"
	"github.com/Harikeshav-R/Penny/internal/ledger/memory"
	"github.com/Harikeshav-R/Penny/internal/llm"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/Harikeshav-R/Penny/internal/pipeline"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

var jpegImage = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

// MockImageAnalyzer is a mock implementation of handlers.ImageAnalyzer.
type MockImageAnalyzer struct {
	AnalyzeFunc func(ctx context.Context, in pipeline.AnalyzeInput) (*pipeline.Analysis, error)
	inputs      []pipeline.AnalyzeInput
}

func (m *MockImageAnalyzer) Analyze(ctx context.Context, in pipeline.AnalyzeInput) (*pipeline.Analysis, error) {
	m.inputs = append(m.inputs, in)
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, in)
	}
	return &pipeline.Analysis{Response: amazonResponse()}, nil
}

// MockPublisher is a mock implementation of jobs.Publisher.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.AnalyzeImageJob) error
	published   []*jobs.AnalyzeImageJob
}

func (m *MockPublisher) PublishAnalyzeImage(ctx context.Context, job *jobs.AnalyzeImageJob) error {
	job.Prepare(time.Now())
	m.published = append(m.published, job)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, job)
	}
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// MockUploader is a mock implementation of handlers.ImageUploader.
type MockUploader struct {
	objects []string
}

func (m *MockUploader) UploadBytes(_ context.Context, objectName string, _ []byte, _ string) (string, error) {
	m.objects = append(m.objects, objectName)
	return "gs://penny-images/" + objectName, nil
}

// MockPlanner is a mock implementation of agent.Planner.
type MockPlanner struct {
	ReadyFunc func() error
	PlanFunc  func(ctx context.Context, req llm.PlanRequest) (*llm.PlanResponse, error)
}

func (m *MockPlanner) Ready() error {
	if m.ReadyFunc != nil {
		return m.ReadyFunc()
	}
	return nil
}

func (m *MockPlanner) Plan(ctx context.Context, req llm.PlanRequest) (*llm.PlanResponse, error) {
	return m.PlanFunc(ctx, req)
}

func amazonResponse() *domain.AnalysisResponse {
	return &domain.AnalysisResponse{
		Merchant:    "Amazon",
		Date:        "2025-03-14",
		TotalAmount: decimal.RequireFromString("33.50"),
		Splits: []domain.CategorySplit{
			{Category: "Shopping", Amount: decimal.RequireFromString("23.50"), Items: []string{"USB cable"}},
			{Category: "Groceries", Amount: decimal.RequireFromString("10.00"), Items: []string{"Snacks"}},
		},
		RawItems: []domain.ExtractedItem{},
	}
}

type testServer struct {
	handler   http.Handler
	tokens    *auth.TokenService
	analyzer  *MockImageAnalyzer
	publisher *MockPublisher
	uploader  *MockUploader
	jobStore  *inmemory.Store
	ledger    *memory.Store
	planner   *MockPlanner
}

type serverOption func(*testServer, *[]handlers.AnalysisOption)

func withUploader() serverOption {
	return func(s *testServer, opts *[]handlers.AnalysisOption) {
		s.uploader = &MockUploader{}
		*opts = append(*opts, handlers.WithUploader(s.uploader))
	}
}

func newTestServer(t *testing.T, limiter *rate.Limiter, opts ...serverOption) *testServer {
	t.Helper()

	s := &testServer{
		tokens:    auth.NewTokenService("test-secret"),
		analyzer:  &MockImageAnalyzer{},
		publisher: &MockPublisher{},
		jobStore:  inmemory.NewStore(),
		ledger:    memory.NewStore(),
		planner: &MockPlanner{PlanFunc: func(context.Context, llm.PlanRequest) (*llm.PlanResponse, error) {
			return &llm.PlanResponse{Text: "Hi! I'm Penny."}, nil
		}},
	}

	var analysisOpts []handlers.AnalysisOption
	for _, opt := range opts {
		opt(s, &analysisOpts)
	}

	fixed := func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	s.handler = handlers.NewRouter(handlers.RouterDeps{
		Analysis: handlers.NewAnalysisHandler(s.analyzer, s.ledger, s.publisher, analysisOpts...),
		Jobs:     handlers.NewJobsHandler(s.jobStore),
		Chat:     handlers.NewChatHandler(agent.NewOrchestrator(s.planner), s.ledger, fixed),
		Verifier: s.tokens,
		Limiter:  limiter,
		Log:      logger.NewWithWriter(io.Discard),
		Now:      fixed,
	})
	return s
}

func (s *testServer) token(t *testing.T, owner uuid.UUID) string {
	t.Helper()
	tok, err := s.tokens.IssueToken(owner, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, req *http.Request, owner uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	if owner != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+s.token(t, owner))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, path string, image []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		part, err := mw.CreateFormFile("image", "receipt.jpg")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		part.Write(image)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestHealth_IsOpen(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), uuid.Nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "healthy" || body["time"] != "2025-06-01T09:00:00Z" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestAPI_RequiresToken(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs", nil), uuid.Nil)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAPI_RateLimited(t *testing.T) {
	s := newTestServer(t, rate.NewLimiter(rate.Limit(0.001), 1))
	owner := uuid.New()

	first := s.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs", nil), owner)
	second := s.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs", nil), owner)

	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Errorf("statuses = %d, %d, want 200, 429", first.Code, second.Code)
	}
}

func TestAnalyzeReceipt(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, multipartRequest(t, "/api/receipts/analyze", jpegImage, nil), uuid.New())

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Merchant    string `json:"merchant"`
		TotalAmount string `json:"total_amount"`
		Splits      []struct {
			Category string   `json:"category"`
			Amount   string   `json:"amount"`
			Items    []string `json:"items"`
		} `json:"splits"`
	}
	decodeBody(t, rec, &resp)
	if resp.Merchant != "Amazon" || resp.TotalAmount != "33.5" || len(resp.Splits) != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Splits[0].Category != "Shopping" || resp.Splits[0].Items[0] != "USB cable" {
		t.Errorf("first split = %+v", resp.Splits[0])
	}
	if got := s.analyzer.inputs[0]; got.Kind != domain.AnalysisKindReceipt || !bytes.Equal(got.Image, jpegImage) {
		t.Errorf("analyzer input = %+v", got)
	}
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			"missing credential",
			domain.NewExtractionError(domain.NewConfigurationError("GEMINI_API_KEY is not set")),
			http.StatusServiceUnavailable,
			"AI features are disabled",
		},
		{
			"unsupported image",
			domain.NewValidationError("unsupported image type text/plain; charset=utf-8: expected JPEG or PNG"),
			http.StatusBadRequest,
			"unsupported image type",
		},
		{
			"retries exhausted",
			domain.NewExtractionError(domain.NewTransientModelError("generate content", errors.New("deadline exceeded"))),
			http.StatusBadGateway,
			"Image analysis failed",
		},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.analyzer.AnalyzeFunc = func(context.Context, pipeline.AnalyzeInput) (*pipeline.Analysis, error) {
				return nil, tt.err
			}

			rec := s.do(t, multipartRequest(t, "/api/receipts/analyze", jpegImage, nil), uuid.New())

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantError) {
				t.Errorf("body = %s, want %q", rec.Body.String(), tt.wantError)
			}
		})
	}
}

func TestAnalyze_MissingImage(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, multipartRequest(t, "/api/receipts/analyze", nil, map[string]string{"note": "x"}), uuid.New())

	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "image is required") {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(s.analyzer.inputs) != 0 {
		t.Error("analyzer should not be called without an image")
	}
}

func TestAnalyzeCart_HourlyRate(t *testing.T) {
	owner := uuid.New()
	stored := decimal.NewFromInt(25)

	tests := []struct {
		name       string
		form       map[string]string
		profile    bool
		wantStatus int
		wantRate   string
	}{
		{"form value", map[string]string{"hourly_rate": "20"}, true, http.StatusOK, "20"},
		{"profile fallback", nil, true, http.StatusOK, "25"},
		{"no rate anywhere", nil, false, http.StatusOK, ""},
		{"invalid", map[string]string{"hourly_rate": "lots"}, false, http.StatusBadRequest, ""},
		{"negative", map[string]string{"hourly_rate": "-5"}, false, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			if tt.profile {
				s.ledger.SaveProfile(context.Background(), &domain.Profile{OwnerID: owner, Level: 1, HourlyRate: &stored})
			}

			rec := s.do(t, multipartRequest(t, "/api/cart/analyze", jpegImage, tt.form), owner)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			in := s.analyzer.inputs[0]
			if in.Kind != domain.AnalysisKindCart {
				t.Errorf("kind = %q, want cart", in.Kind)
			}
			switch {
			case tt.wantRate == "" && in.HourlyRate != nil:
				t.Errorf("hourly rate = %v, want nil", in.HourlyRate)
			case tt.wantRate != "" && (in.HourlyRate == nil || in.HourlyRate.String() != tt.wantRate):
				t.Errorf("hourly rate = %v, want %s", in.HourlyRate, tt.wantRate)
			}
		})
	}
}

func TestEnqueueAnalysis(t *testing.T) {
	owner := uuid.New()

	t.Run("embeds image without archive", func(t *testing.T) {
		s := newTestServer(t, nil)

		rec := s.do(t, multipartRequest(t, "/api/receipts/jobs", jpegImage, map[string]string{"record": "true"}), owner)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var body map[string]string
		decodeBody(t, rec, &body)
		job := s.publisher.published[0]
		if body["job_id"] != job.JobID || body["status"] != string(jobs.JobStatusPending) {
			t.Errorf("body = %v, job = %+v", body, job)
		}
		if job.OwnerID != owner || job.Kind != domain.AnalysisKindReceipt || !job.Record {
			t.Errorf("unexpected job: %+v", job)
		}
		if !bytes.Equal(job.Image, jpegImage) || job.ImageURI != "" {
			t.Errorf("expected embedded image, got uri %q", job.ImageURI)
		}
	})

	t.Run("archives image when configured", func(t *testing.T) {
		s := newTestServer(t, nil, withUploader())

		rec := s.do(t, multipartRequest(t, "/api/receipts/jobs", jpegImage, map[string]string{"kind": "cart", "hourly_rate": "30"}), owner)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		job := s.publisher.published[0]
		if job.Image != nil || !strings.HasPrefix(job.ImageURI, "gs://penny-images/"+owner.String()+"/cart/") {
			t.Errorf("unexpected job image fields: uri=%q bytes=%d", job.ImageURI, len(job.Image))
		}
		if job.HourlyRate == nil || job.HourlyRate.String() != "30" {
			t.Errorf("hourly rate = %v, want 30", job.HourlyRate)
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		s := newTestServer(t, nil)

		for _, form := range []map[string]string{{"kind": "invoice"}, {"record": "maybe"}} {
			rec := s.do(t, multipartRequest(t, "/api/receipts/jobs", jpegImage, form), owner)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("form %v: status = %d, want 400", form, rec.Code)
			}
		}
		if len(s.publisher.published) != 0 {
			t.Error("nothing should be published for bad input")
		}
	})
}

func TestJobs_OwnerScoped(t *testing.T) {
	s := newTestServer(t, nil)
	owner, other := uuid.New(), uuid.New()
	ctx := context.Background()

	mine := &jobs.AnalyzeImageJob{JobID: "job-mine", OwnerID: owner, Kind: domain.AnalysisKindReceipt, Status: jobs.JobStatusCompleted, CreatedAt: time.Now()}
	theirs := &jobs.AnalyzeImageJob{JobID: "job-theirs", OwnerID: other, Kind: domain.AnalysisKindCart, Status: jobs.JobStatusPending, CreatedAt: time.Now()}
	s.jobStore.SaveJob(ctx, mine)
	s.jobStore.SaveJob(ctx, theirs)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"own job", "/api/jobs/job-mine", http.StatusOK, `"job_id":"job-mine"`},
		{"foreign job", "/api/jobs/job-theirs", http.StatusNotFound, "Job not found"},
		{"missing job", "/api/jobs/nope", http.StatusNotFound, "Job not found"},
		{"list", "/api/jobs", http.StatusOK, `"count":1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, httptest.NewRequest(http.MethodGet, tt.path, nil), owner)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %q", rec.Body.String(), tt.wantBody)
			}
			if strings.Contains(rec.Body.String(), "job-theirs") {
				t.Error("foreign job leaked")
			}
		})
	}
}

func TestChat(t *testing.T) {
	owner := uuid.New()

	t.Run("returns reply and history", func(t *testing.T) {
		s := newTestServer(t, nil)
		body := `{"message":"hello","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"Hi!"}]}`

		rec := s.do(t, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)), owner)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Response  string                    `json:"response"`
			History   []domain.ConversationTurn `json:"history"`
			ToolCalls []domain.ToolInvocation   `json:"tool_calls"`
		}
		decodeBody(t, rec, &resp)
		if resp.Response != "Hi! I'm Penny." {
			t.Errorf("response = %q", resp.Response)
		}
		if len(resp.History) != 4 || resp.History[2].Content != "hello" || resp.History[3].Role != domain.RoleAssistant {
			t.Errorf("history = %+v", resp.History)
		}
		if resp.ToolCalls == nil {
			t.Error("tool_calls should be an empty list, not null")
		}
	})

	t.Run("tools act for the token owner", func(t *testing.T) {
		s := newTestServer(t, nil)
		calls := 0
		s.planner.PlanFunc = func(_ context.Context, req llm.PlanRequest) (*llm.PlanResponse, error) {
			calls++
			if calls == 1 {
				return &llm.PlanResponse{Calls: []llm.FunctionCall{{
					Name: "add_transaction",
					Args: map[string]any{"merchant": "Starbucks", "amount": 4.5, "category": "Food & Drink"},
				}}}, nil
			}
			return &llm.PlanResponse{Text: "Added."}, nil
		}

		rec := s.do(t, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"I spent $4.50 at Starbucks"}`)), owner)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		txs, _ := s.ledger.ListTransactions(context.Background(), owner, ledgerFilterAll())
		if len(txs) != 1 || txs[0].Merchant != "Starbucks" {
			t.Errorf("expected one Starbucks transaction for owner, got %+v", txs)
		}
		if !strings.Contains(rec.Body.String(), `"name":"add_transaction"`) {
			t.Errorf("expected tool call in body, got %s", rec.Body.String())
		}
	})

	t.Run("disabled without credential", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.planner.ReadyFunc = func() error { return domain.NewConfigurationError("GEMINI_API_KEY is not set") }

		rec := s.do(t, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`)), owner)

		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), agent.ReplyDisabled) {
			t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("bad body", func(t *testing.T) {
		s := newTestServer(t, nil)

		for _, body := range []string{`{`, `{"message":"   "}`} {
			rec := s.do(t, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)), owner)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("body %q: status = %d, want 400", body, rec.Code)
			}
		}
	})
}

func ledgerFilterAll() ledger.TransactionFilter {
	return ledger.TransactionFilter{Limit: 100}
}
