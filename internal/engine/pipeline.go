// Package engine orchestrates a full credit evaluation: bureau fetch,
// report normalization, factor scoring, recommendation, and persistence.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/algolend/kestrel/internal/bureau"
	"github.com/algolend/kestrel/internal/decision"
	"github.com/algolend/kestrel/internal/domain"
	"github.com/algolend/kestrel/internal/flags"
	"github.com/algolend/kestrel/internal/mockbureau"
	"github.com/algolend/kestrel/internal/report"
	"github.com/algolend/kestrel/internal/scoring"
)

// Version identifies the evaluation pipeline for audit records.
const Version = "1.0.0"

const bureauNameDefault = "XDS"

// Fetcher submits an enquiry and returns the raw retdata payload.
// *bureau.Client is the production implementation.
type Fetcher interface {
	DoNormalEnquiry(ctx context.Context, app *domain.Applicant) (string, error)
}

// Pipeline runs evaluations end to end.
type Pipeline struct {
	cfg     domain.BureauConfig
	fetcher Fetcher
	scoring *scoring.Engine
	flags   *flags.Engine
	store   domain.RecordStore
	cache   domain.Cache
	bus     domain.EventBus
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a pipeline. Store, cache and bus may be nil in tests;
// each absent component simply skips its stage.
func New(cfg domain.BureauConfig, fetcher Fetcher, scoringEngine *scoring.Engine, flagEngine *flags.Engine, store domain.RecordStore, cache domain.Cache, bus domain.EventBus, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if fetcher == nil && !cfg.MockMode {
		fetcher = bureau.NewClient(bureau.Config{
			URL:           cfg.URL,
			Username:      cfg.Username,
			Password:      cfg.Password,
			Version:       cfg.Version,
			Origin:        cfg.Origin,
			OriginVersion: cfg.OriginVersion,
			Timeout:       time.Duration(cfg.Timeout) * time.Second,
		}, logger)
	}
	return &Pipeline{
		cfg:     cfg,
		fetcher: fetcher,
		scoring: scoringEngine,
		flags:   flagEngine,
		store:   store,
		cache:   cache,
		bus:     bus,
		logger:  logger.With("component", "engine"),
		tracer:  otel.Tracer("kestrel/engine"),
	}
}

// Evaluate runs one complete credit evaluation and returns the appended
// decision record. Validation failures surface as *domain.ValidationError
// before any bureau traffic; enquiry-limit rejections as
// domain.ErrEnquiryLimit.
func (p *Pipeline) Evaluate(ctx context.Context, req *domain.EvaluationRequest) (*domain.DecisionRecord, error) {
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "pipeline.evaluate",
		trace.WithAttributes(
			attribute.String("application.id", req.ApplicationID),
			attribute.Bool("bureau.mock", p.cfg.MockMode),
		))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Device.IP = domain.NormalizeIP(req.Device.IP)

	app := &req.Applicant
	if app.ClientRef == "" {
		app.ClientRef = req.ApplicationID
	}

	rawPayload, rpt, cacheHit, bureauMs, err := p.obtainReport(ctx, req)
	if err != nil {
		p.publishFailure(ctx, req, err)
		return nil, err
	}

	normStart := time.Now()
	exposure := report.Exposure(rpt.Accounts)
	normalizeMs := time.Since(normStart).Milliseconds()

	scoreStart := time.Now()
	breakdown := p.scoring.Evaluate(scoring.Input{
		Report:   rpt,
		Exposure: exposure,
		Inputs:   req.Inputs,
		Device:   req.Device,
	})

	signals := decision.SignalsFromReport(rpt)
	recommendation := decision.Recommend(signals)
	riskFlags := p.evaluateFlags(signals)
	reason := decision.Reason(recommendation, signals, riskFlags)
	scoreMs := time.Since(scoreStart).Milliseconds()

	rec := &domain.DecisionRecord{
		ID:            uuid.New().String(),
		UserID:        app.UserID,
		ApplicationID: req.ApplicationID,

		ReportReference: rpt.EnquiryID,
		BureauName:      bureauNameDefault,
		FirstName:       app.Forename,
		LastName:        app.Surname,
		IDNumber:        app.IdentityNumber,

		CreditScore:          rpt.Score,
		ScoreBand:            rpt.RiskType,
		RiskCategory:         decision.RiskCategory(rpt.Score),
		Recommendation:       recommendation,
		RecommendationReason: reason,
		RiskFlags:            riskFlags,

		Report:    rpt,
		Breakdown: breakdown,
		Exposure:  exposure,

		RawPayload: rawPayload,
		MockMode:   p.cfg.MockMode,
		Status:     "completed",
		Metadata: domain.EvaluationMetadata{
			TraceID:       span.SpanContext().TraceID().String(),
			BureauMs:      bureauMs,
			NormalizeMs:   normalizeMs,
			ScoreMs:       scoreMs,
			TotalMs:       time.Since(start).Milliseconds(),
			CacheHit:      cacheHit,
			EngineVersion: Version,
		},
		CreatedAt: time.Now().UTC(),
	}

	if p.store != nil {
		if err := p.store.AppendRecord(ctx, rec); err != nil {
			p.logger.Error("failed to append decision record",
				"application_id", req.ApplicationID,
				"error", err)
			return nil, err
		}
	}

	p.publishCompleted(ctx, rec)

	p.logger.Info("evaluation completed",
		"application_id", req.ApplicationID,
		"record_id", rec.ID,
		"score", rec.CreditScore,
		"recommendation", rec.Recommendation,
		"risk_category", rec.RiskCategory,
		"cache_hit", cacheHit,
		"duration_ms", rec.Metadata.TotalMs)

	span.SetAttributes(
		attribute.Int("report.score", rec.CreditScore),
		attribute.String("decision.recommendation", string(rec.Recommendation)),
	)

	return rec, nil
}

// obtainReport serves the normalized report from cache when possible,
// otherwise fetches from the bureau (or the mock generator) and caches
// the result. The enquiry limit only counts real fetches: cached serves
// are not billed.
func (p *Pipeline) obtainReport(ctx context.Context, req *domain.EvaluationRequest) (rawPayload string, rpt *domain.CreditReport, cacheHit bool, bureauMs int64, err error) {
	idNumber := req.Applicant.IdentityNumber

	if p.cache != nil {
		cached, cerr := p.cache.GetReport(ctx, idNumber)
		if cerr != nil {
			p.logger.Warn("report cache lookup failed", "error", cerr)
		} else if cached != nil && cached.Report != nil && cached.MockMode == p.cfg.MockMode {
			return cached.RawPayload, cached.Report, true, 0, nil
		}
	}

	if err = p.checkEnquiryLimit(ctx, idNumber); err != nil {
		return "", nil, false, 0, err
	}

	fetchStart := time.Now()
	rawPayload, err = p.fetchPayload(ctx, req)
	bureauMs = time.Since(fetchStart).Milliseconds()
	if err != nil {
		return "", nil, false, bureauMs, err
	}

	assets, err := bureau.DecodeReportAssets(rawPayload, p.logger)
	if err != nil {
		return "", nil, false, bureauMs, err
	}

	rpt, err = report.Normalize(assets.XML)
	if err != nil {
		return "", nil, false, bureauMs, err
	}

	p.publishFetched(ctx, req, rpt)

	if p.cache != nil && p.cfg.ReportTTL > 0 {
		cached := &domain.CachedReport{
			Report:     rpt,
			RawPayload: rawPayload,
			FetchedAt:  time.Now().UTC(),
			MockMode:   p.cfg.MockMode,
		}
		ttl := time.Duration(p.cfg.ReportTTL) * time.Second
		if cerr := p.cache.SetReport(ctx, idNumber, cached, ttl); cerr != nil {
			p.logger.Warn("report cache store failed", "error", cerr)
		}
	}

	return rawPayload, rpt, false, bureauMs, nil
}

func (p *Pipeline) fetchPayload(ctx context.Context, req *domain.EvaluationRequest) (string, error) {
	if p.cfg.MockMode {
		return mockbureau.GeneratePayload(&req.Applicant, req.ApplicationID)
	}
	return p.fetcher.DoNormalEnquiry(ctx, &req.Applicant)
}

func (p *Pipeline) checkEnquiryLimit(ctx context.Context, idNumber string) error {
	if p.cache == nil || p.cfg.EnquiryLimit <= 0 {
		return nil
	}

	window := time.Duration(p.cfg.EnquiryWindow) * time.Second
	if window <= 0 {
		window = 24 * time.Hour
	}

	count, err := p.cache.IncrementCounter(ctx, "enquiry:"+idNumber, window)
	if err != nil {
		// A broken counter must not block evaluations.
		p.logger.Warn("enquiry counter failed", "error", err)
		return nil
	}
	if count > int64(p.cfg.EnquiryLimit) {
		p.logger.Warn("enquiry limit exceeded",
			"limit", p.cfg.EnquiryLimit,
			"count", count)
		return domain.ErrEnquiryLimit
	}
	return nil
}

func (p *Pipeline) evaluateFlags(signals decision.Signals) []string {
	if p.flags == nil {
		return nil
	}
	return p.flags.Evaluate(signals)
}

func (p *Pipeline) publishFetched(ctx context.Context, req *domain.EvaluationRequest, rpt *domain.CreditReport) {
	if p.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"applicationId": req.ApplicationID,
		"enquiryId":     rpt.EnquiryID,
		"score":         rpt.Score,
		"mockMode":      p.cfg.MockMode,
	})
	if err := p.bus.Publish(ctx, domain.TopicReportFetched, payload); err != nil {
		p.logger.Warn("failed to publish report fetched event", "error", err)
	}
}

func (p *Pipeline) publishCompleted(ctx context.Context, rec *domain.DecisionRecord) {
	if p.bus == nil {
		return
	}
	payload, _ := json.Marshal(rec)
	if err := p.bus.Publish(ctx, domain.TopicDecisionCompleted, payload); err != nil {
		p.logger.Warn("failed to publish decision completed event", "error", err)
	}
}

func (p *Pipeline) publishFailure(ctx context.Context, req *domain.EvaluationRequest, evalErr error) {
	if p.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"applicationId": req.ApplicationID,
		"error":         evalErr.Error(),
		"retryable":     domain.IsRetryable(evalErr),
	})
	if err := p.bus.Publish(ctx, domain.TopicEvaluationFailed, payload); err != nil {
		p.logger.Warn("failed to publish evaluation failed event", "error", err)
	}
}
