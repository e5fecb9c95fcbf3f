// Package notify delivers operator alerts for scanner events. A Notifier
// subscribes to the in-process event bus, formats each event into a short
// human-readable message, and fans it out to the configured senders.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/flashscan/internal/bus"
	"github.com/alanyoungcy/flashscan/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the sender ("telegram", "discord").
	Name() string
}

// Notifier formats scanner events and dispatches them to its senders. Only
// event kinds in the allowed set are forwarded; an empty set allows all.
type Notifier struct {
	senders []Sender
	allowed map[domain.EventKind]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. events
// filters by kind name; leave it empty to receive everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventKind]bool, len(events))
	for _, e := range events {
		allowed[domain.EventKind(strings.TrimSpace(e))] = true
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Run subscribes to every notifiable event kind and dispatches until the
// context is cancelled.
func (n *Notifier) Run(ctx context.Context, b *bus.Bus) error {
	kinds := []domain.EventKind{
		domain.EventOpportunity,
		domain.EventFlashMoveExecuted,
		domain.EventPositionClosed,
	}

	merged := make(chan domain.Event, 64)
	for _, kind := range kinds {
		if len(n.allowed) > 0 && !n.allowed[kind] {
			continue
		}
		ch, cancel := b.Subscribe(kind)
		defer cancel()
		go func() {
			for ev := range ch {
				select {
				case merged <- ev:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-merged:
			title, message := format(ev)
			if title == "" {
				continue
			}
			n.dispatch(ctx, title, message)
		}
	}
}

// dispatch sends to every sender. One sender failing does not block the
// rest; failures are logged, not returned, since alerting is best-effort.
func (n *Notifier) dispatch(ctx context.Context, title, message string) {
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Error("sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.Debug("notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
}

// format renders one event into a title and body. Unknown payloads produce
// an empty title and are skipped.
func format(ev domain.Event) (title, message string) {
	switch p := ev.Payload.(type) {
	case *domain.ArbitrageOpportunity:
		return "Arbitrage opportunity",
			fmt.Sprintf("%s\ncost %.4f, profit %.4f, ROI %.2f%%, capacity $%.0f",
				p.Question, p.CombinedCost, p.PotentialProfit, p.ROIPercent, p.CapacityUSD)
	case *domain.FlashMoveEvent:
		return "Flash move executed",
			fmt.Sprintf("%s\n%.4f -> %.4f (velocity %.2f%%, confidence %.2f, risk %.0f, %s)",
				p.Question, p.OldPrice, p.NewPrice, p.Velocity*100, p.Confidence, p.RiskScore, p.Strategy)
	case *domain.PositionClosedEvent:
		return "Position closed",
			fmt.Sprintf("token %s\nentry %.4f, exit %.4f, PnL $%.2f (%s)",
				p.TokenID, p.EntryPrice, p.ExitPrice, p.PnL, p.Reason)
	default:
		return "", ""
	}
}

// httpTimeout bounds every outbound webhook call.
const httpTimeout = 10 * time.Second
