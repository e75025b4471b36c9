package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/llm"
	"github.com/Harikeshav-R/Penny/internal/pipeline"
	"github.com/Harikeshav-R/Penny/internal/retry"
	"github.com/shopspring/decimal"
)

var (
	jpegImage = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}
	pngImage  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
)

const amazonReceipt = `{"items":[
	{"merchant":"Amazon","category":"Shopping","amount":23.50,"item_name":"USB cable","date":"2025-03-14"},
	{"merchant":"Amazon","category":"Groceries","amount":10.00,"item_name":"Snacks","date":"2025-03-14"}
]}`

// MockStructuredCaller implements pipeline.StructuredCaller.
type MockStructuredCaller struct {
	ReadyFunc        func() error
	GenerateJSONFunc func(ctx context.Context, req llm.StructuredRequest) ([]byte, error)
	calls            int
}

func (m *MockStructuredCaller) Ready() error {
	if m.ReadyFunc != nil {
		return m.ReadyFunc()
	}
	return nil
}

func (m *MockStructuredCaller) GenerateJSON(ctx context.Context, req llm.StructuredRequest) ([]byte, error) {
	m.calls++
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, req)
	}
	return []byte(`{"items":[]}`), nil
}

func replies(raw ...string) func(ctx context.Context, req llm.StructuredRequest) ([]byte, error) {
	i := 0
	return func(ctx context.Context, req llm.StructuredRequest) ([]byte, error) {
		r := raw[i%len(raw)]
		i++
		return []byte(r), nil
	}
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newAnalyzer(caller *MockStructuredCaller, sleeps *sleepRecorder, opts ...pipeline.AnalyzerOption) *pipeline.Analyzer {
	opts = append([]pipeline.AnalyzerOption{
		pipeline.WithRetryOptions(retry.WithSleep(sleeps.sleep)),
		pipeline.WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return pipeline.NewAnalyzer(pipeline.NewExtractor(caller), opts...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAnalyzeReceipt_SplitsByCategory(t *testing.T) {
	caller := &MockStructuredCaller{GenerateJSONFunc: replies(amazonReceipt)}
	a := newAnalyzer(caller, &sleepRecorder{})

	resp, err := a.AnalyzeReceipt(context.Background(), jpegImage)
	if err != nil {
		t.Fatalf("AnalyzeReceipt() error = %v", err)
	}

	if resp.Merchant != "Amazon" {
		t.Errorf("Merchant = %q, want Amazon", resp.Merchant)
	}
	if resp.Date != "2025-03-14" {
		t.Errorf("Date = %q, want 2025-03-14", resp.Date)
	}
	if !resp.TotalAmount.Equal(dec("33.50")) {
		t.Errorf("TotalAmount = %s, want 33.50", resp.TotalAmount)
	}
	if len(resp.Splits) != 2 {
		t.Fatalf("len(Splits) = %d, want 2", len(resp.Splits))
	}
	if s := resp.Splits[0]; s.Category != "Shopping" || !s.Amount.Equal(dec("23.50")) || len(s.Items) != 1 || s.Items[0] != "USB cable" {
		t.Errorf("Splits[0] = %+v", s)
	}
	if s := resp.Splits[1]; s.Category != "Groceries" || !s.Amount.Equal(dec("10.00")) || len(s.Items) != 1 || s.Items[0] != "Snacks" {
		t.Errorf("Splits[1] = %+v", s)
	}
	if len(resp.RawItems) != 2 {
		t.Errorf("len(RawItems) = %d, want 2", len(resp.RawItems))
	}
	if resp.TimeCostHours != nil {
		t.Errorf("receipts carry no time cost, got %s", resp.TimeCostHours)
	}
	if caller.calls != 1 {
		t.Errorf("model calls = %d, want 1", caller.calls)
	}
}

func TestAnalyzeReceipt_EmptyItems(t *testing.T) {
	caller := &MockStructuredCaller{GenerateJSONFunc: replies(`{"items":[]}`)}
	a := newAnalyzer(caller, &sleepRecorder{})

	resp, err := a.AnalyzeReceipt(context.Background(), pngImage)
	if err != nil {
		t.Fatalf("AnalyzeReceipt() error = %v", err)
	}
	if !resp.TotalAmount.IsZero() {
		t.Errorf("TotalAmount = %s, want 0", resp.TotalAmount)
	}
	if resp.Splits == nil || len(resp.Splits) != 0 {
		t.Errorf("Splits = %v, want empty", resp.Splits)
	}
	if resp.Merchant != pipeline.DefaultMerchant {
		t.Errorf("Merchant = %q, want %q", resp.Merchant, pipeline.DefaultMerchant)
	}
	if resp.Date != "2025-06-01" {
		t.Errorf("Date = %q, want today", resp.Date)
	}
}

func TestAnalyze_MissingCredentialFailsFast(t *testing.T) {
	caller := &MockStructuredCaller{
		ReadyFunc: func() error { return domain.NewConfigurationError("GEMINI_API_KEY is not set") },
	}
	sleeps := &sleepRecorder{}
	a := newAnalyzer(caller, sleeps)

	_, err := a.AnalyzeReceipt(context.Background(), jpegImage)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("error = %v, want configuration error", err)
	}
	if !errors.Is(err, domain.ErrExtraction) {
		t.Errorf("error = %v, want extraction error", err)
	}
	if caller.calls != 0 {
		t.Errorf("model calls = %d, want 0", caller.calls)
	}
	if len(sleeps.delays) != 0 {
		t.Errorf("delays = %v, want none", sleeps.delays)
	}
}

func TestAnalyze_Retry(t *testing.T) {
	errBusy := errors.New("model overloaded")

	tests := []struct {
		name       string
		failures   int
		wantErr    bool
		wantCalls  int
		wantDelays []time.Duration
	}{
		{"first attempt succeeds", 0, false, 1, nil},
		{"two failures then success", 2, false, 3, []time.Duration{time.Second, 2 * time.Second}},
		{"always failing", 5, true, 3, []time.Duration{time.Second, 2 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt := 0
			caller := &MockStructuredCaller{
				GenerateJSONFunc: func(ctx context.Context, req llm.StructuredRequest) ([]byte, error) {
					attempt++
					if attempt <= tt.failures {
						return nil, domain.NewTransientModelError("generate content", errBusy)
					}
					return []byte(amazonReceipt), nil
				},
			}
			sleeps := &sleepRecorder{}
			a := newAnalyzer(caller, sleeps)

			_, err := a.AnalyzeReceipt(context.Background(), jpegImage)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, domain.ErrExtraction) || !errors.Is(err, errBusy) {
					t.Errorf("error = %v, want extraction error wrapping the last cause", err)
				}
			}
			if caller.calls != tt.wantCalls {
				t.Errorf("model calls = %d, want %d", caller.calls, tt.wantCalls)
			}
			if len(sleeps.delays) != len(tt.wantDelays) {
				t.Fatalf("delays = %v, want %v", sleeps.delays, tt.wantDelays)
			}
			for i := range tt.wantDelays {
				if sleeps.delays[i] != tt.wantDelays[i] {
					t.Errorf("delay[%d] = %v, want %v", i, sleeps.delays[i], tt.wantDelays[i])
				}
			}
		})
	}
}

func TestAnalyze_MalformedOutputIsRetried(t *testing.T) {
	caller := &MockStructuredCaller{
		GenerateJSONFunc: replies(`{"items":[{"merchant":"x","category":"y","amount":-2,"item_name":"z"}]}`, amazonReceipt),
	}
	sleeps := &sleepRecorder{}
	a := newAnalyzer(caller, sleeps)

	resp, err := a.AnalyzeReceipt(context.Background(), jpegImage)
	if err != nil {
		t.Fatalf("AnalyzeReceipt() error = %v", err)
	}
	if !resp.TotalAmount.Equal(dec("33.5")) {
		t.Errorf("TotalAmount = %s, want 33.50", resp.TotalAmount)
	}
	if len(sleeps.delays) != 1 {
		t.Errorf("delays = %v, want one", sleeps.delays)
	}
}

func TestAnalyze_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   pipeline.AnalyzeInput
	}{
		{"empty image", pipeline.AnalyzeInput{Kind: domain.AnalysisKindReceipt}},
		{"not an image", pipeline.AnalyzeInput{Kind: domain.AnalysisKindReceipt, Image: []byte("%PDF-1.4")}},
		{"unknown kind", pipeline.AnalyzeInput{Kind: "invoice", Image: jpegImage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &MockStructuredCaller{}
			_, err := newAnalyzer(caller, &sleepRecorder{}).Analyze(context.Background(), tt.in)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error = %v, want validation error", err)
			}
			if caller.calls != 0 {
				t.Errorf("model calls = %d, want 0", caller.calls)
			}
		})
	}
}

func TestAnalyzeCart(t *testing.T) {
	rate := dec("20")
	zeroRate := decimal.Zero

	tests := []struct {
		name         string
		raw          string
		rate         *decimal.Decimal
		wantMerchant string
		wantTotal    string
		wantHours    string // empty means nil
		wantSplits   int
	}{
		{
			name:         "reported total and merchant",
			raw:          `{"merchant":"Target","total_amount":45.00,"items":[{"merchant":"Target","category":"Shopping","amount":30,"item_name":"Lamp"},{"merchant":"Target","category":"Groceries","amount":12,"item_name":"Coffee"}]}`,
			rate:         &rate,
			wantMerchant: "Target",
			wantTotal:    "45",
			wantHours:    "2.3",
			wantSplits:   2,
		},
		{
			name:         "falls back to item merchant and sum",
			raw:          `{"total_amount":0,"items":[{"merchant":"Walmart","category":"Groceries","amount":7.25,"item_name":"Eggs"},{"merchant":"Walmart","category":"Groceries","amount":2.75,"item_name":"Milk"}]}`,
			rate:         &rate,
			wantMerchant: "Walmart",
			wantTotal:    "10",
			wantHours:    "0.5",
			wantSplits:   1,
		},
		{
			name:         "no rate",
			raw:          `{"items":[{"merchant":"Best Buy","category":"Electronics","amount":99.99,"item_name":"Headphones"}]}`,
			wantMerchant: "Best Buy",
			wantTotal:    "99.99",
			wantSplits:   1,
		},
		{
			name:         "zero rate",
			raw:          `{"items":[{"merchant":"Best Buy","category":"Electronics","amount":99.99,"item_name":"Headphones"}]}`,
			rate:         &zeroRate,
			wantMerchant: "Best Buy",
			wantTotal:    "99.99",
			wantSplits:   1,
		},
		{
			name:         "empty cart ignores reported total",
			raw:          `{"merchant":"Etsy","total_amount":12.00,"items":[]}`,
			rate:         &rate,
			wantMerchant: "Etsy",
			wantTotal:    "0",
			wantSplits:   0,
		},
		{
			name:         "empty cart without merchant",
			raw:          `{"items":[]}`,
			rate:         &rate,
			wantMerchant: pipeline.DefaultMerchant,
			wantTotal:    "0",
			wantSplits:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &MockStructuredCaller{GenerateJSONFunc: replies(tt.raw)}
			resp, err := newAnalyzer(caller, &sleepRecorder{}).AnalyzeCart(context.Background(), pngImage, tt.rate)
			if err != nil {
				t.Fatalf("AnalyzeCart() error = %v", err)
			}
			if resp.Merchant != tt.wantMerchant {
				t.Errorf("Merchant = %q, want %q", resp.Merchant, tt.wantMerchant)
			}
			if !resp.TotalAmount.Equal(dec(tt.wantTotal)) {
				t.Errorf("TotalAmount = %s, want %s", resp.TotalAmount, tt.wantTotal)
			}
			if resp.Date != "2025-06-01" {
				t.Errorf("Date = %q, want today", resp.Date)
			}
			if len(resp.Splits) != tt.wantSplits {
				t.Errorf("len(Splits) = %d, want %d", len(resp.Splits), tt.wantSplits)
			}
			switch {
			case tt.wantHours == "" && resp.TimeCostHours != nil:
				t.Errorf("TimeCostHours = %s, want nil", resp.TimeCostHours)
			case tt.wantHours != "" && (resp.TimeCostHours == nil || !resp.TimeCostHours.Equal(dec(tt.wantHours))):
				t.Errorf("TimeCostHours = %v, want %s", resp.TimeCostHours, tt.wantHours)
			}
		})
	}
}

func TestAnalyzeCart_TruncatesLongNames(t *testing.T) {
	raw := `{"items":[{"merchant":"Amazon","category":"Shopping","amount":5,"item_name":"Ultra Premium Braided USB-C to USB-C Charging Cable 2 Pack 6ft"}]}`
	caller := &MockStructuredCaller{GenerateJSONFunc: replies(raw)}

	resp, err := newAnalyzer(caller, &sleepRecorder{}).AnalyzeCart(context.Background(), jpegImage, nil)
	if err != nil {
		t.Fatalf("AnalyzeCart() error = %v", err)
	}
	if n := len([]rune(resp.RawItems[0].ItemName)); n != 50 {
		t.Errorf("item name has %d runes, want 50", n)
	}
}

func TestAnalyze_Cache(t *testing.T) {
	caller := &MockStructuredCaller{GenerateJSONFunc: replies(amazonReceipt)}
	a := newAnalyzer(caller, &sleepRecorder{}, pipeline.WithCache(pipeline.NewResultCache(time.Minute)))
	ctx := context.Background()

	first, err := a.Analyze(ctx, pipeline.AnalyzeInput{Kind: domain.AnalysisKindReceipt, Image: jpegImage})
	if err != nil {
		t.Fatalf("first Analyze() error = %v", err)
	}
	second, err := a.Analyze(ctx, pipeline.AnalyzeInput{Kind: domain.AnalysisKindReceipt, Image: jpegImage})
	if err != nil {
		t.Fatalf("second Analyze() error = %v", err)
	}

	if first.Cached || !second.Cached {
		t.Errorf("Cached = %v, %v; want false, true", first.Cached, second.Cached)
	}
	if caller.calls != 1 {
		t.Errorf("model calls = %d, want 1", caller.calls)
	}
	if !second.Response.TotalAmount.Equal(first.Response.TotalAmount) {
		t.Errorf("cached total %s != %s", second.Response.TotalAmount, first.Response.TotalAmount)
	}
	if first.ImageSHA256 == "" || first.MIMEType != pipeline.MIMETypeJPEG {
		t.Errorf("unexpected metadata: %+v", first)
	}

	// the same bytes as a cart are a different entry
	if _, err := a.Analyze(ctx, pipeline.AnalyzeInput{Kind: domain.AnalysisKindCart, Image: jpegImage}); err != nil {
		t.Fatalf("cart Analyze() error = %v", err)
	}
	if caller.calls != 2 {
		t.Errorf("model calls = %d, want 2", caller.calls)
	}
}

func TestExtractor_PassesImageAndSchema(t *testing.T) {
	var got llm.StructuredRequest
	caller := &MockStructuredCaller{
		GenerateJSONFunc: func(ctx context.Context, req llm.StructuredRequest) ([]byte, error) {
			got = req
			return []byte(`{"items":[]}`), nil
		},
	}

	raw, err := pipeline.NewExtractor(caller).Extract(context.Background(), pngImage, "read it", pipeline.ReceiptSchema())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if string(raw) != `{"items":[]}` {
		t.Errorf("raw = %s", raw)
	}
	if got.MIMEType != pipeline.MIMETypePNG || got.Instruction != "read it" || got.Schema == nil || len(got.Image) != len(pngImage) {
		t.Errorf("unexpected request: %+v", got)
	}
}
