package domain

import "time"

// ExecutionStrategy is how aggressively a flash move should be traded.
type ExecutionStrategy string

const (
	StrategyAggressive   ExecutionStrategy = "aggressive"
	StrategyConservative ExecutionStrategy = "conservative"
	StrategyAdaptive     ExecutionStrategy = "adaptive"
)

// FlashMoveEvent describes a single detected price dislocation. It is
// immutable once emitted by the detection engine.
type FlashMoveEvent struct {
	TokenID     string            `json:"token_id"`
	ConditionID string            `json:"condition_id"`
	OldPrice    float64           `json:"old_price"`
	NewPrice    float64           `json:"new_price"`
	Velocity    float64           `json:"velocity"`
	Momentum    float64           `json:"momentum"`
	VolumeSpike float64           `json:"volume_spike"`
	Confidence  float64           `json:"confidence"` // 0..1
	Question    string            `json:"question"`
	MarketSlug  string            `json:"market_slug"`
	Image       string            `json:"image"`
	Strategy    ExecutionStrategy `json:"strategy,omitempty"`
	RiskScore   float64           `json:"risk_score,omitempty"`
	DetectedAt  time.Time         `json:"detected_at"`
}

// RiskAssessment is the risk manager's verdict on a flash move. It is
// derived per call and not retained beyond a bounded score history.
type RiskAssessment struct {
	TooRisky            bool
	Reason              string
	RiskScore           float64 // 0..100
	RecommendedStrategy ExecutionStrategy
	PositionSize        float64
	MaxSlippage         float64
}

// PositionState is the lifecycle state of a flash position.
type PositionState string

const (
	PositionOpened  PositionState = "opened"
	PositionClosing PositionState = "closing"
	PositionClosed  PositionState = "closed"
)

// FlashPosition is a live position opened by the flash execution engine.
// At most one active position exists per token ID.
type FlashPosition struct {
	TokenID      string
	EntryPrice   float64
	CurrentPrice float64
	Shares       float64
	Strategy     ExecutionStrategy
	State        PositionState
	OpenedAt     time.Time
}

// Notional returns the position's exposure at its current mark, falling
// back to the entry price when no mark has been observed yet.
func (p FlashPosition) Notional() float64 {
	price := p.CurrentPrice
	if price == 0 {
		price = p.EntryPrice
	}
	return price * p.Shares
}

// PortfolioRiskMetrics aggregates risk over all active flash positions.
type PortfolioRiskMetrics struct {
	TotalExposure     float64
	ConcurrentCount   int
	MaxSinglePosition float64
	RiskScore         float64
	CorrelationRisk   bool
}

// FlashMoveResult is the outcome of one execution attempt. Failures are
// captured here, never raised as errors past the execution call.
type FlashMoveResult struct {
	Success       bool
	Strategy      ExecutionStrategy
	ExecutionTime time.Duration
	Slippage      float64
	Reason        string
}

// ExecutionStats is the execution engine's cumulative counters.
type ExecutionStats struct {
	Executions  int64
	Successes   int64
	SuccessRate float64
}

// FlashRecord is the flat persisted record of a completed flash move,
// handed to the persistence collaborator after execution.
type FlashRecord struct {
	ID          string
	TokenID     string
	ConditionID string
	Question    string
	OldPrice    float64
	NewPrice    float64
	Velocity    float64
	Momentum    float64
	VolumeSpike float64
	Confidence  float64
	RiskScore   float64
	Strategy    ExecutionStrategy
	Executed    bool
	Slippage    float64
	Reason      string
	DetectedAt  time.Time
	RecordedAt  time.Time
}
