package domain

import "time"

// SnapshotState is the lifecycle state of a market snapshot.
type SnapshotState string

const (
	// SnapshotPending marks a snapshot synthesized from a price update for
	// a market we have not seen a new_market event for yet.
	SnapshotPending SnapshotState = "pending"
	// SnapshotPopulated marks a snapshot filled in from a new_market event.
	SnapshotPopulated SnapshotState = "populated"
	// SnapshotResolved marks a snapshot whose market has resolved.
	SnapshotResolved SnapshotState = "resolved"
)

// OutcomeLeg is one outcome's tradable token within a market.
// Price is the best ask; the quote feed carries no depth, so Size stays 0
// unless a separate orderbook fetch fills it in.
type OutcomeLeg struct {
	TokenID string
	Outcome string
	Price   float64
	Size    float64
}

// MarketSnapshot is the live in-memory view of one market's outcome legs.
// It is created on first observation and mutated in place on every tick.
type MarketSnapshot struct {
	MarketID     string
	Question     string
	Slug         string
	Image        string
	State        SnapshotState
	NegRisk      bool
	Crypto       bool
	Outcomes     map[string]*OutcomeLeg // keyed by token ID
	ExpectedLegs int
	PricedLegs   int // legs that have received at least one quote
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OpportunityLeg records one leg's contribution to an arbitrage opportunity.
type OpportunityLeg struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
}

// ArbitrageOpportunity is a riskless cross-outcome spread: buying every leg
// costs less than the guaranteed 1.00 payout at resolution.
type ArbitrageOpportunity struct {
	ID              string           `json:"id"`
	MarketID        string           `json:"market_id"`
	Question        string           `json:"question"`
	CombinedCost    float64          `json:"combined_cost"`
	PotentialProfit float64          `json:"potential_profit"`
	ROIPercent      float64          `json:"roi_percent"`
	CapacityUSD     float64          `json:"capacity_usd"`
	Crypto          bool             `json:"crypto"`
	Legs            []OpportunityLeg `json:"legs"`
	DetectedAt      time.Time        `json:"detected_at"`
}
