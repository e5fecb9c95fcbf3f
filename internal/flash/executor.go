package flash

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

// ExecutionEngine places flash-move trades through the external trade
// executor and owns the resulting positions. It never lets an execution
// failure escape as an error: failures are captured in the result so a
// single bad trade cannot crash the pipeline.
type ExecutionEngine struct {
	trader    domain.TradeExecutor
	publisher domain.EventPublisher
	logger    *slog.Logger

	mu        sync.Mutex
	positions map[string]*domain.FlashPosition
	inflight  map[string]time.Time
	execs     int64
	successes int64
}

// NewExecutionEngine creates an ExecutionEngine delegating to the given
// trade executor.
func NewExecutionEngine(trader domain.TradeExecutor, publisher domain.EventPublisher, logger *slog.Logger) *ExecutionEngine {
	return &ExecutionEngine{
		trader:    trader,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "flash_executor")),
		positions: make(map[string]*domain.FlashPosition),
		inflight:  make(map[string]time.Time),
	}
}

// ExecuteFlashMove executes one flash-move trade with the risk-recommended
// strategy, size, and slippage bound. A second detection for a token whose
// execution is still in flight (or which already holds a position) is
// dropped rather than queued.
func (e *ExecutionEngine) ExecuteFlashMove(ctx context.Context, ev *domain.FlashMoveEvent, risk domain.RiskAssessment) domain.FlashMoveResult {
	e.mu.Lock()
	if _, busy := e.inflight[ev.TokenID]; busy {
		e.mu.Unlock()
		e.logger.Debug("execution already in flight, dropping", slog.String("token", ev.TokenID))
		return domain.FlashMoveResult{
			Strategy: risk.RecommendedStrategy,
			Reason:   "execution already in flight for token",
		}
	}
	if _, open := e.positions[ev.TokenID]; open {
		e.mu.Unlock()
		e.logger.Debug("position already open, dropping", slog.String("token", ev.TokenID))
		return domain.FlashMoveResult{
			Strategy: risk.RecommendedStrategy,
			Reason:   "position already open for token",
		}
	}
	e.inflight[ev.TokenID] = time.Now().UTC()
	e.execs++
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, ev.TokenID)
		e.mu.Unlock()
	}()

	req := domain.TradeRequest{
		TokenID:     ev.TokenID,
		Side:        domain.OrderSideBuy,
		Price:       ev.NewPrice,
		SizeUSD:     risk.PositionSize,
		MaxSlippage: risk.MaxSlippage,
		Strategy:    risk.RecommendedStrategy,
		Reason:      fmt.Sprintf("flash move: velocity %.4f confidence %.2f", ev.Velocity, ev.Confidence),
	}

	start := time.Now()
	res, err := e.trader.Execute(ctx, req)
	elapsed := time.Since(start)

	result := domain.FlashMoveResult{
		Strategy:      risk.RecommendedStrategy,
		ExecutionTime: elapsed,
	}

	if err != nil {
		result.Reason = err.Error()
		e.logger.Warn("flash execution failed",
			slog.String("token", ev.TokenID),
			slog.String("error", err.Error()),
		)
		return result
	}
	if !res.Success {
		result.Reason = res.Message
		e.logger.Warn("flash order rejected",
			slog.String("token", ev.TokenID),
			slog.String("message", res.Message),
		)
		return result
	}

	result.Success = true
	if ev.NewPrice > 0 {
		result.Slippage = (res.FilledPrice - ev.NewPrice) / ev.NewPrice
	}

	e.mu.Lock()
	e.successes++
	e.positions[ev.TokenID] = &domain.FlashPosition{
		TokenID:    ev.TokenID,
		EntryPrice: res.FilledPrice,
		Shares:     res.Shares,
		Strategy:   risk.RecommendedStrategy,
		State:      domain.PositionOpened,
		OpenedAt:   time.Now().UTC(),
	}
	e.mu.Unlock()

	e.logger.Info("flash position opened",
		slog.String("token", ev.TokenID),
		slog.Float64("entry", res.FilledPrice),
		slog.Float64("shares", res.Shares),
		slog.String("strategy", string(risk.RecommendedStrategy)),
		slog.Duration("execution_time", elapsed),
	)
	return result
}

// ActivePositions returns a copy of the live position map.
func (e *ExecutionEngine) ActivePositions() map[string]domain.FlashPosition {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]domain.FlashPosition, len(e.positions))
	for id, p := range e.positions {
		out[id] = *p
	}
	return out
}

// MarkPrice updates a position's current mark from a live tick. Unknown
// tokens are ignored.
func (e *ExecutionEngine) MarkPrice(tokenID string, price float64) {
	if price <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.positions[tokenID]; ok {
		p.CurrentPrice = price
	}
}

// ClosePosition unwinds one position. Closing an already-closed or unknown
// position is a no-op, not an error.
func (e *ExecutionEngine) ClosePosition(ctx context.Context, tokenID, reason string) {
	e.mu.Lock()
	pos, ok := e.positions[tokenID]
	if !ok || pos.State != domain.PositionOpened {
		e.mu.Unlock()
		return
	}
	pos.State = domain.PositionClosing
	snapshot := *pos
	e.mu.Unlock()

	exitPrice := snapshot.CurrentPrice
	if exitPrice == 0 {
		exitPrice = snapshot.EntryPrice
	}

	res, err := e.trader.Execute(ctx, domain.TradeRequest{
		TokenID:  tokenID,
		Side:     domain.OrderSideSell,
		Price:    exitPrice,
		SizeUSD:  exitPrice * snapshot.Shares,
		Strategy: snapshot.Strategy,
		Reason:   reason,
	})
	if err != nil {
		// The position leaves tracking either way; only the exit fill
		// price is lost.
		e.logger.Error("close order failed",
			slog.String("token", tokenID),
			slog.String("error", err.Error()),
		)
	} else if res.Success && res.FilledPrice > 0 {
		exitPrice = res.FilledPrice
	}

	e.mu.Lock()
	delete(e.positions, tokenID)
	e.mu.Unlock()

	pnl := (exitPrice - snapshot.EntryPrice) * snapshot.Shares
	e.logger.Info("flash position closed",
		slog.String("token", tokenID),
		slog.String("reason", reason),
		slog.Float64("pnl", pnl),
	)

	e.publisher.Publish(domain.Event{
		Kind: domain.EventPositionClosed,
		At:   time.Now().UTC(),
		Payload: &domain.PositionClosedEvent{
			TokenID:    tokenID,
			EntryPrice: snapshot.EntryPrice,
			ExitPrice:  exitPrice,
			Shares:     snapshot.Shares,
			PnL:        pnl,
			Reason:     reason,
		},
	})
}

// CloseAll unwinds every active position with the given reason.
func (e *ExecutionEngine) CloseAll(ctx context.Context, reason string) {
	for tokenID := range e.ActivePositions() {
		e.ClosePosition(ctx, tokenID, reason)
	}
}

// Stats returns cumulative execution counters.
func (e *ExecutionEngine) Stats() domain.ExecutionStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := domain.ExecutionStats{
		Executions: e.execs,
		Successes:  e.successes,
	}
	if e.execs > 0 {
		stats.SuccessRate = float64(e.successes) / float64(e.execs)
	}
	return stats
}

// Cleanup drops in-flight markers older than a minute. ExecuteFlashMove
// clears its own marker on return, so anything that old is stale.
func (e *ExecutionEngine) Cleanup() {
	cutoff := time.Now().UTC().Add(-time.Minute)

	e.mu.Lock()
	defer e.mu.Unlock()

	for token, started := range e.inflight {
		if started.Before(cutoff) {
			delete(e.inflight, token)
		}
	}
}
