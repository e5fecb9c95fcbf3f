// Package bus provides an in-process typed publish/subscribe bus. Producers
// publish domain.Event values keyed by kind; consumers subscribe per kind and
// receive events on buffered channels. Publish never blocks the producer:
// events for a saturated subscriber are dropped and counted.
package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

// defaultBuffer is the per-subscriber channel depth.
const defaultBuffer = 256

type subscriber struct {
	kind domain.EventKind
	ch   chan domain.Event
}

// Bus is a typed event fan-out. The zero value is not usable; construct
// with New.
type Bus struct {
	mu      sync.RWMutex
	subs    map[domain.EventKind][]*subscriber
	dropped atomic.Int64
	closed  bool
	logger  *slog.Logger
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[domain.EventKind][]*subscriber),
		logger: logger.With(slog.String("component", "event_bus")),
	}
}

// Subscribe registers interest in one event kind and returns the delivery
// channel together with a cancel function. The channel is closed when the
// subscription is cancelled or the bus is closed.
func (b *Bus) Subscribe(kind domain.EventKind) (<-chan domain.Event, func()) {
	sub := &subscriber{
		kind: kind,
		ch:   make(chan domain.Event, defaultBuffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[kind] = append(b.subs[kind], sub)
	b.mu.Unlock()

	cancel := func() { b.unsubscribe(sub) }
	return sub.ch, cancel
}

// Publish delivers ev to every subscriber of its kind. Delivery is
// best-effort: a subscriber that has fallen behind loses the event rather
// than stalling the publisher.
//
// The sends happen under the read lock. Channels are only ever closed under
// the write lock (unsubscribe, Close), so a send can never observe a closed
// channel; the sends are non-blocking, so the lock is never held for long.
func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs[ev.Kind] {
		select {
		case sub.ch <- ev:
		default:
			n := b.dropped.Add(1)
			if n%100 == 1 {
				b.logger.Warn("subscriber saturated, dropping event",
					slog.String("kind", string(ev.Kind)),
					slog.Int64("dropped_total", n),
				)
			}
		}
	}
}

// Dropped returns the total number of events dropped due to slow subscribers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close tears down all subscriptions. Publish becomes a no-op afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	b.subs = make(map[domain.EventKind][]*subscriber)
}

func (b *Bus) unsubscribe(target *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	subs := b.subs[target.kind]
	for i, sub := range subs {
		if sub == target {
			b.subs[target.kind] = append(subs[:i], subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Compile-time interface check.
var _ domain.EventPublisher = (*Bus)(nil)
