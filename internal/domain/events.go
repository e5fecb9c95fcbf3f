package domain

import "time"

// EventKind identifies a class of emitted event. Consumers register typed
// handlers per kind instead of matching ad-hoc string channel names.
type EventKind string

const (
	EventOpportunity       EventKind = "opportunity"
	EventFlashMoveDetected EventKind = "flash_move_detected"
	EventFlashMoveExecuted EventKind = "flash_move_executed"
	EventPositionClosed    EventKind = "position_closed"
)

// Event is a single published event. Payload holds the kind-specific value:
// *ArbitrageOpportunity for EventOpportunity, *FlashMoveEvent for the flash
// kinds, and *PositionClosedEvent for EventPositionClosed.
type Event struct {
	Kind    EventKind
	At      time.Time
	Payload any
}

// PositionClosedEvent is the payload published when a flash position closes.
type PositionClosedEvent struct {
	TokenID    string  `json:"token_id"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Shares     float64 `json:"shares"`
	PnL        float64 `json:"pnl"`
	Reason     string  `json:"reason"`
}

// EventPublisher is the write side of the typed event bus.
type EventPublisher interface {
	Publish(ev Event)
}
