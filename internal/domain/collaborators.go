package domain

import (
	"context"
	"time"
)

// OrderSide is the direction of a trade request.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// TradeRequest is handed to the trade executor collaborator. SizeUSD is the
// notional to commit; MaxSlippage bounds the acceptable fill deterioration.
type TradeRequest struct {
	TokenID     string
	Side        OrderSide
	Price       float64
	SizeUSD     float64
	MaxSlippage float64
	Strategy    ExecutionStrategy
	Reason      string
}

// TradeResult is the executor collaborator's answer. Order routing details
// beyond these fields are out of scope.
type TradeResult struct {
	Success     bool
	OrderID     string
	FilledPrice float64
	Shares      float64
	Message     string
}

// TradeExecutor places orders on the exchange (or simulates them).
type TradeExecutor interface {
	Execute(ctx context.Context, req TradeRequest) (TradeResult, error)
}

// FlashRecordStore persists completed flash move records. Failures must be
// treated as non-fatal by callers on the trading path.
type FlashRecordStore interface {
	Create(ctx context.Context, rec FlashRecord) error
	ListBefore(ctx context.Context, before time.Time) ([]FlashRecord, error)
}

// OpportunityStore persists detected arbitrage opportunities.
type OpportunityStore interface {
	Create(ctx context.Context, opp ArbitrageOpportunity) error
	ListBefore(ctx context.Context, before time.Time) ([]ArbitrageOpportunity, error)
}

// PriceCache provides fast access to the latest observed prices.
type PriceCache interface {
	SetPrice(ctx context.Context, assetID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, assetID string) (float64, time.Time, error)
}

// OpportunityCache keeps the latest opportunity per market for external
// consumers (UI, other processes).
type OpportunityCache interface {
	Set(ctx context.Context, opp ArbitrageOpportunity) error
	Get(ctx context.Context, marketID string) (ArbitrageOpportunity, error)
	Delete(ctx context.Context, marketID string) error
}

// SignalBus fans emitted events out to external consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads archive objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}
