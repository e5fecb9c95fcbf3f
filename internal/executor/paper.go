package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

// Paper is a simulated trade executor. Every order fills immediately at the
// requested price adjusted by a fixed slippage fraction, which keeps paper
// results pessimistic relative to a frictionless fill.
type Paper struct {
	slippage float64
	logger   *slog.Logger

	mu     sync.Mutex
	orders int64
}

// NewPaper creates a paper executor. slippage is the simulated adverse fill
// fraction (0.002 means fills land 0.2% worse than requested).
func NewPaper(slippage float64, logger *slog.Logger) *Paper {
	if slippage < 0 {
		slippage = 0
	}
	return &Paper{
		slippage: slippage,
		logger:   logger.With(slog.String("component", "paper_executor")),
	}
}

var _ domain.TradeExecutor = (*Paper)(nil)

// Execute simulates a fill. The simulated slippage is checked against the
// request's MaxSlippage bound so paper mode exercises the same rejection
// path a live executor would.
func (p *Paper) Execute(ctx context.Context, req domain.TradeRequest) (domain.TradeResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.TradeResult{}, fmt.Errorf("executor: paper execute: %w", err)
	}
	if req.Price <= 0 || req.SizeUSD <= 0 {
		return domain.TradeResult{
			Message: fmt.Sprintf("invalid order: price=%.4f size=%.2f", req.Price, req.SizeUSD),
		}, nil
	}

	filled := req.Price
	switch req.Side {
	case domain.OrderSideBuy:
		filled = req.Price * (1 + p.slippage)
	case domain.OrderSideSell:
		filled = req.Price * (1 - p.slippage)
	}

	if req.MaxSlippage > 0 && p.slippage*100 > req.MaxSlippage {
		return domain.TradeResult{
			Message: fmt.Sprintf("simulated slippage %.3f%% exceeds bound %.3f%%", p.slippage*100, req.MaxSlippage),
		}, nil
	}

	p.mu.Lock()
	p.orders++
	n := p.orders
	p.mu.Unlock()

	res := domain.TradeResult{
		Success:     true,
		OrderID:     "paper-" + uuid.NewString(),
		FilledPrice: filled,
		Shares:      req.SizeUSD / filled,
		Message:     "paper fill",
	}

	p.logger.Info("paper order filled",
		slog.String("token", req.TokenID),
		slog.String("side", string(req.Side)),
		slog.Float64("requested", req.Price),
		slog.Float64("filled", filled),
		slog.Float64("shares", res.Shares),
		slog.Int64("order_seq", n),
		slog.Time("at", time.Now().UTC()),
	)
	return res, nil
}

// Orders returns how many simulated orders have filled.
func (p *Paper) Orders() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orders
}
