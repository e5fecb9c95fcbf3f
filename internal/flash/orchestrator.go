package flash

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

// MarketInfo resolves a token ID back to its market metadata for event
// enrichment.
type MarketInfo interface {
	TokenContext(tokenID string) (conditionID, question, slug, image string, ok bool)
}

// Orchestrator drives a tick through the full flash pipeline: detection,
// risk assessment, execution, and record persistence. It is the only
// component that sees all of the stage collaborators at once.
type Orchestrator struct {
	detector *Detector
	risk     *RiskManager
	engine   *ExecutionEngine
	markets  MarketInfo
	records  domain.FlashRecordStore
	bus      domain.EventPublisher
	logger   *slog.Logger

	mu      sync.Mutex
	enabled bool
}

// NewOrchestrator wires the flash pipeline. records may be nil when
// persistence is not configured.
func NewOrchestrator(
	detector *Detector,
	risk *RiskManager,
	engine *ExecutionEngine,
	markets MarketInfo,
	records domain.FlashRecordStore,
	bus domain.EventPublisher,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		detector: detector,
		risk:     risk,
		engine:   engine,
		markets:  markets,
		records:  records,
		bus:      bus,
		logger:   logger.With(slog.String("component", "flash")),
		enabled:  true,
	}
}

// HandleTick feeds one price observation through the pipeline. Ticks are
// dropped entirely while the pipeline is disabled.
func (o *Orchestrator) HandleTick(ctx context.Context, tokenID string, price, volume float64, ts time.Time) {
	o.mu.Lock()
	enabled := o.enabled
	o.mu.Unlock()
	if !enabled {
		return
	}

	o.engine.MarkPrice(tokenID, price)

	ev := o.detector.Observe(tokenID, price, volume, ts)
	if ev == nil {
		return
	}

	if conditionID, question, slug, image, ok := o.markets.TokenContext(tokenID); ok {
		ev.ConditionID = conditionID
		ev.Question = question
		ev.MarketSlug = slug
		ev.Image = image
	}

	risk := o.risk.Assess(ev)
	ev.RiskScore = risk.RiskScore
	ev.Strategy = risk.RecommendedStrategy

	o.bus.Publish(domain.Event{Kind: domain.EventFlashMoveDetected, At: ev.DetectedAt, Payload: ev})

	if risk.TooRisky {
		o.logger.Warn("flash move vetoed",
			slog.String("token", tokenID),
			slog.String("reason", risk.Reason),
			slog.Float64("risk_score", risk.RiskScore),
		)
		return
	}

	result := o.engine.ExecuteFlashMove(ctx, ev, risk)
	o.persist(ctx, ev, result)

	if result.Success {
		o.bus.Publish(domain.Event{Kind: domain.EventFlashMoveExecuted, At: time.Now().UTC(), Payload: ev})
	}
}

func (o *Orchestrator) persist(ctx context.Context, ev *domain.FlashMoveEvent, res domain.FlashMoveResult) {
	if o.records == nil {
		return
	}

	rec := domain.FlashRecord{
		ID:          uuid.NewString(),
		TokenID:     ev.TokenID,
		ConditionID: ev.ConditionID,
		Question:    ev.Question,
		OldPrice:    ev.OldPrice,
		NewPrice:    ev.NewPrice,
		Velocity:    ev.Velocity,
		Momentum:    ev.Momentum,
		VolumeSpike: ev.VolumeSpike,
		Confidence:  ev.Confidence,
		RiskScore:   ev.RiskScore,
		Strategy:    ev.Strategy,
		Executed:    res.Success,
		Slippage:    res.Slippage,
		Reason:      res.Reason,
		DetectedAt:  ev.DetectedAt,
		RecordedAt:  time.Now().UTC(),
	}
	if err := o.records.Create(ctx, rec); err != nil {
		o.logger.Warn("flash record persist failed",
			slog.String("token", ev.TokenID),
			slog.String("error", err.Error()),
		)
	}
}

// Enabled reports whether the pipeline is accepting ticks.
func (o *Orchestrator) Enabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enabled
}

// Enable resumes tick processing.
func (o *Orchestrator) Enable() {
	o.mu.Lock()
	o.enabled = true
	o.mu.Unlock()
	o.logger.Info("flash pipeline enabled")
}

// Disable stops tick processing and unwinds every active position.
func (o *Orchestrator) Disable(ctx context.Context) {
	o.mu.Lock()
	o.enabled = false
	o.mu.Unlock()
	o.logger.Info("flash pipeline disabled")
	o.engine.CloseAll(ctx, "Service disabled")
}

// Stats exposes the execution engine's counters.
func (o *Orchestrator) Stats() domain.ExecutionStats {
	return o.engine.Stats()
}

// Cleanup prunes stale state in every stage. A panic in one stage must not
// prevent the others from running.
func (o *Orchestrator) Cleanup() {
	for name, fn := range map[string]func(){
		"detector": o.detector.Cleanup,
		"risk":     o.risk.Cleanup,
		"executor": o.engine.Cleanup,
	} {
		o.runCleanup(name, fn)
	}
}

func (o *Orchestrator) runCleanup(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("cleanup panicked",
				slog.String("stage", name),
				slog.Any("panic", r),
			)
		}
	}()
	fn()
}
