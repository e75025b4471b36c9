package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/Harikeshav-R/Penny/internal/retry"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// AnalyzeInput is one image to analyse.
type AnalyzeInput struct {
	Kind       domain.AnalysisKind
	Image      []byte
	HourlyRate *decimal.Decimal // cart only
}

// Analysis is the outcome of one Analyze call.
type Analysis struct {
	Response    *domain.AnalysisResponse
	Raw         []byte
	MIMEType    string
	ImageSHA256 string
	Cached      bool
}

type cachedExtraction struct {
	ext *extraction
	raw []byte
}

// Analyzer runs the receipt and cart pipelines: extract with retry, then
// aggregate into splits.
type Analyzer struct {
	extractor *Extractor
	retryOpts []retry.Option
	cache     *cache.Cache
	now       func() time.Time
}

// AnalyzerOption customises an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithRetryOptions overrides the retry policy used around extraction.
func WithRetryOptions(opts ...retry.Option) AnalyzerOption {
	return func(a *Analyzer) { a.retryOpts = opts }
}

// WithCache enables the result cache for repeated identical images.
func WithCache(c *cache.Cache) AnalyzerOption {
	return func(a *Analyzer) { a.cache = c }
}

// WithClock replaces time.Now for the "today" fallbacks.
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer creates an analyzer on top of extractor.
func NewAnalyzer(extractor *Extractor, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{extractor: extractor, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewResultCache returns a cache suitable for WithCache.
func NewResultCache(ttl time.Duration) *cache.Cache {
	return cache.New(ttl, 2*ttl)
}

// AnalyzeReceipt extracts and aggregates a receipt photo.
func (a *Analyzer) AnalyzeReceipt(ctx context.Context, image []byte) (*domain.AnalysisResponse, error) {
	res, err := a.Analyze(ctx, AnalyzeInput{Kind: domain.AnalysisKindReceipt, Image: image})
	if err != nil {
		return nil, err
	}
	return res.Response, nil
}

// AnalyzeCart extracts and aggregates a cart screenshot. hourlyRate may be nil.
func (a *Analyzer) AnalyzeCart(ctx context.Context, image []byte, hourlyRate *decimal.Decimal) (*domain.AnalysisResponse, error) {
	res, err := a.Analyze(ctx, AnalyzeInput{Kind: domain.AnalysisKindCart, Image: image, HourlyRate: hourlyRate})
	if err != nil {
		return nil, err
	}
	return res.Response, nil
}

// Analyze runs one pipeline. A missing model credential fails before any
// model call; other extraction failures are retried and the final cause is
// wrapped in an extraction error.
func (a *Analyzer) Analyze(ctx context.Context, in AnalyzeInput) (*Analysis, error) {
	log := logger.Component(logger.FromContext(ctx), "analyzer")

	if !in.Kind.Valid() {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown analysis kind %q", in.Kind))
	}
	mimeType, err := DetectImageType(in.Image)
	if err != nil {
		return nil, err
	}
	if err := a.extractor.Ready(); err != nil {
		return nil, domain.NewExtractionError(err)
	}

	sum := sha256.Sum256(in.Image)
	digest := hex.EncodeToString(sum[:])
	result := &Analysis{MIMEType: mimeType, ImageSHA256: digest}

	key := string(in.Kind) + ":" + digest
	if a.cache != nil {
		if v, ok := a.cache.Get(key); ok {
			hit := v.(cachedExtraction)
			log.Debug().Str("kind", string(in.Kind)).Str("sha256", digest).Msg("analysis served from cache")
			result.Response = a.buildResponse(in, hit.ext)
			result.Raw = hit.raw
			result.Cached = true
			return result, nil
		}
	}

	instruction, schema := promptFor(in.Kind)
	var raw []byte
	ext, err := retry.Do(ctx, func(ctx context.Context) (*extraction, error) {
		out, err := a.extractor.Extract(ctx, in.Image, instruction, schema)
		if err != nil {
			return nil, err
		}
		raw = out
		return decodeExtraction(in.Kind, out)
	}, a.retryOpts...)
	if err != nil {
		log.Error().Err(err).Str("kind", string(in.Kind)).Msg("analysis failed")
		return nil, domain.NewExtractionError(err)
	}

	if a.cache != nil {
		a.cache.Set(key, cachedExtraction{ext: ext, raw: raw}, cache.DefaultExpiration)
	}

	result.Response = a.buildResponse(in, ext)
	result.Raw = raw

	log.Info().
		Str("kind", string(in.Kind)).
		Int("items", len(ext.Items)).
		Str("total", result.Response.TotalAmount.StringFixed(2)).
		Msg("analysis completed")

	return result, nil
}

func promptFor(kind domain.AnalysisKind) (string, *genai.Schema) {
	if kind == domain.AnalysisKindCart {
		return buildCartPrompt(), CartSchema()
	}
	return buildReceiptPrompt(), ReceiptSchema()
}

func (a *Analyzer) today() string {
	return a.now().Format(DateLayout)
}

func (a *Analyzer) buildResponse(in AnalyzeInput, ext *extraction) *domain.AnalysisResponse {
	if in.Kind == domain.AnalysisKindCart {
		return a.buildCartResponse(ext, in.HourlyRate)
	}
	return a.buildReceiptResponse(ext)
}

// buildReceiptResponse takes merchant and date from the first item and
// totals the items.
func (a *Analyzer) buildReceiptResponse(ext *extraction) *domain.AnalysisResponse {
	resp := &domain.AnalysisResponse{
		Merchant:    DefaultMerchant,
		Date:        a.today(),
		TotalAmount: decimal.Zero,
		Splits:      Aggregate(ext.Items),
		RawItems:    ext.Items,
	}
	if len(ext.Items) == 0 {
		return resp
	}

	first := ext.Items[0]
	if first.Merchant != "" {
		resp.Merchant = first.Merchant
	}
	if _, err := time.Parse(DateLayout, first.Date); err == nil {
		resp.Date = first.Date
	}
	resp.TotalAmount = sumItems(ext.Items).Round(2)
	return resp
}

// buildCartResponse prefers the cart total and merchant the model read off the
// page, falling back to the items. An empty cart totals zero whatever the model
// reported. The date is always today.
func (a *Analyzer) buildCartResponse(ext *extraction, hourlyRate *decimal.Decimal) *domain.AnalysisResponse {
	resp := &domain.AnalysisResponse{
		Merchant:    DefaultMerchant,
		Date:        a.today(),
		TotalAmount: decimal.Zero,
		Splits:      Aggregate(ext.Items),
		RawItems:    ext.Items,
	}

	switch {
	case ext.ReportedMerchant != "":
		resp.Merchant = ext.ReportedMerchant
	case len(ext.Items) > 0 && ext.Items[0].Merchant != "":
		resp.Merchant = ext.Items[0].Merchant
	}

	total := sumItems(ext.Items)
	if len(ext.Items) > 0 && ext.ReportedTotal != nil && !ext.ReportedTotal.IsZero() {
		total = *ext.ReportedTotal
	}
	resp.TotalAmount = total.Round(2)

	if len(ext.Items) > 0 && hourlyRate != nil && hourlyRate.IsPositive() {
		hours := total.Div(*hourlyRate).Round(1)
		resp.TimeCostHours = &hours
	}
	return resp
}
