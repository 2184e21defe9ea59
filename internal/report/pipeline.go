// Package report runs the quota-gated research report flow: admission,
// web search, prompt selection, model call, and usage accounting.
package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stockbrief/internal/external"
	"stockbrief/internal/quota"
	"stockbrief/internal/types"
)

// Report outcomes recorded in metrics.
const (
	OutcomeSuccess          = "success"
	OutcomeQuotaExceeded    = "quota_exceeded"
	OutcomeQuotaCheckFailed = "quota_check_failed"
	OutcomeSearchFailed     = "search_failed"
	OutcomeModelFailed      = "model_failed"
)

// ledgerWriteTimeout bounds the ledger append and the replay publish. Both
// run detached from the request, so the request deadline does not apply.
const ledgerWriteTimeout = 5 * time.Second

// retryMessage is shown for every upstream failure.
const retryMessage = "The report service is busy. Please try again shortly."

// Admitter is the quota check run before any billable work.
type Admitter interface {
	Admit(ctx context.Context, identity types.UserIdentity, action types.UsageAction) (quota.Decision, error)
}

// LedgerWriter appends usage entries.
type LedgerWriter interface {
	Append(ctx context.Context, entry types.UsageLogEntry) error
}

// ReplayPublisher queues a usage entry whose append failed.
type ReplayPublisher interface {
	PublishLedgerEntry(ctx context.Context, entry types.UsageLogEntry) error
}

// Recorder receives report metrics.
type Recorder interface {
	RecordQuotaDecision(plan types.PlanTier, admitted bool)
	RecordReportOutcome(plan types.PlanTier, outcome string)
	RecordLedgerWriteFailure()
	RecordExternalFailure(provider string)
}

// Result is a generated report.
type Result struct {
	Text    string
	Plan    types.PlanTier
	Variant types.PromptVariant
}

// Pipeline orchestrates one report request.
type Pipeline struct {
	gate    Admitter
	search  external.SearchProvider
	model   external.TextGenerator
	ledger  LedgerWriter
	replay  ReplayPublisher
	metrics Recorder
	clock   types.Clock
	logger  *slog.Logger
	newID   func() string
}

// Config holds the Pipeline dependencies. Replay and Metrics are optional.
type Config struct {
	Gate    Admitter
	Search  external.SearchProvider
	Model   external.TextGenerator
	Ledger  LedgerWriter
	Replay  ReplayPublisher
	Metrics Recorder
	Clock   types.Clock
	Logger  *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{
		gate:    cfg.Gate,
		search:  cfg.Search,
		model:   cfg.Model,
		ledger:  cfg.Ledger,
		replay:  cfg.Replay,
		metrics: cfg.Metrics,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		newID:   uuid.NewString,
	}
	if p.metrics == nil {
		p.metrics = noopRecorder{}
	}
	if p.clock == nil {
		p.clock = types.RealClock{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Handle generates a report on symbol for identity. The symbol must already
// be validated and upper-cased.
//
// Nothing is written when admission, search, or the model call fails. Once
// the model has returned, the text is delivered even if the ledger append
// fails.
func (p *Pipeline) Handle(ctx context.Context, identity types.UserIdentity, symbol string) (*Result, error) {
	logger := p.logger.With("user_id", identity.ID, "symbol", symbol)

	decision, err := p.gate.Admit(ctx, identity, types.ActionCompanyIntro)
	if err != nil {
		logger.ErrorContext(ctx, "quota check failed", "error", err)
		p.metrics.RecordReportOutcome("", OutcomeQuotaCheckFailed)
		return nil, err
	}
	p.metrics.RecordQuotaDecision(decision.Plan, decision.Admitted)
	if !decision.Admitted {
		p.metrics.RecordReportOutcome(decision.Plan, OutcomeQuotaExceeded)
		return nil, decision.Err()
	}

	variant := VariantFor(decision.Plan)
	results, err := p.search.Search(ctx, external.SearchRequest{
		Query: SearchQuery(symbol),
		Num:   decision.Limits.SearchDepth,
	})
	if err != nil {
		logger.ErrorContext(ctx, "search failed", "error", err)
		p.metrics.RecordReportOutcome(decision.Plan, OutcomeSearchFailed)
		p.metrics.RecordExternalFailure("search")
		return nil, upstreamFailure(types.ErrCodeUpstreamSearch, err)
	}

	text, err := p.model.Generate(ctx, BuildPrompt(variant, symbol, results))
	if err != nil {
		logger.ErrorContext(ctx, "model call failed", "model", p.model.Name(), "error", err)
		p.metrics.RecordReportOutcome(decision.Plan, OutcomeModelFailed)
		p.metrics.RecordExternalFailure(p.model.Name())
		return nil, upstreamFailure(types.ErrCodeUpstreamModel, err)
	}

	p.recordUsage(context.WithoutCancel(ctx), logger, types.UsageLogEntry{
		ID:        p.newID(),
		UserID:    identity.ID,
		Action:    types.ActionCompanyIntro,
		Symbol:    symbol,
		CreatedAt: p.clock.Now(),
	})

	p.metrics.RecordReportOutcome(decision.Plan, OutcomeSuccess)
	logger.InfoContext(ctx, "report generated",
		"plan", string(decision.Plan),
		"variant", string(variant),
		"search_results", len(results),
	)
	return &Result{Text: text, Plan: decision.Plan, Variant: variant}, nil
}

// recordUsage appends the ledger entry. Failures are logged and, when a
// replay queue is configured, handed to it.
func (p *Pipeline) recordUsage(ctx context.Context, logger *slog.Logger, entry types.UsageLogEntry) {
	appendCtx, cancel := context.WithTimeout(ctx, ledgerWriteTimeout)
	err := p.ledger.Append(appendCtx, entry)
	cancel()
	if err == nil {
		return
	}

	p.metrics.RecordLedgerWriteFailure()
	logger.ErrorContext(ctx, "usage ledger append failed; report delivered unbilled",
		"entry_id", entry.ID,
		"error", err,
	)
	if p.replay == nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(ctx, ledgerWriteTimeout)
	defer cancel()
	if perr := p.replay.PublishLedgerEntry(publishCtx, entry); perr != nil {
		logger.ErrorContext(ctx, "ledger replay publish failed", "entry_id", entry.ID, "error", perr)
		return
	}
	logger.InfoContext(ctx, "ledger entry queued for replay", "entry_id", entry.ID)
}

// upstreamFailure hides provider detail behind the generic retry message
// while keeping the provider code for status mapping and logs.
func upstreamFailure(fallback types.ErrorCode, err error) *types.AppError {
	code := fallback
	if types.IsUpstream(err) {
		code = types.CodeOf(err)
	}
	return types.NewAppError(code, retryMessage, err)
}

type noopRecorder struct{}

func (noopRecorder) RecordQuotaDecision(types.PlanTier, bool)   {}
func (noopRecorder) RecordReportOutcome(types.PlanTier, string) {}
func (noopRecorder) RecordLedgerWriteFailure()                  {}
func (noopRecorder) RecordExternalFailure(string)               {}
