package bus

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func event(kind domain.EventKind, payload any) domain.Event {
	return domain.Event{Kind: kind, At: time.Now().UTC(), Payload: payload}
}

func TestPublishFansOutPerKind(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	opp1, _ := b.Subscribe(domain.EventOpportunity)
	opp2, _ := b.Subscribe(domain.EventOpportunity)
	flash, _ := b.Subscribe(domain.EventFlashMoveDetected)

	b.Publish(event(domain.EventOpportunity, "payload"))

	for i, ch := range []<-chan domain.Event{opp1, opp2} {
		select {
		case ev := <-ch:
			if ev.Payload != "payload" {
				t.Errorf("subscriber %d payload = %v", i, ev.Payload)
			}
		default:
			t.Errorf("subscriber %d did not receive the event", i)
		}
	}
	select {
	case ev := <-flash:
		t.Errorf("flash subscriber received foreign kind: %+v", ev)
	default:
	}
}

func TestPublishDropsWhenSaturated(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	ch, _ := b.Subscribe(domain.EventOpportunity)
	for i := 0; i < defaultBuffer+10; i++ {
		b.Publish(event(domain.EventOpportunity, i))
	}

	if got := b.Dropped(); got != 10 {
		t.Errorf("dropped = %d, want 10", got)
	}
	// The first buffered events are intact.
	ev := <-ch
	if ev.Payload != 0 {
		t.Errorf("first delivered payload = %v, want 0", ev.Payload)
	}
}

func TestCancelUnsubscribes(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	ch, cancel := b.Subscribe(domain.EventOpportunity)
	cancel()

	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}
	b.Publish(event(domain.EventOpportunity, "x"))
	if got := b.Dropped(); got != 0 {
		t.Errorf("publish to cancelled subscriber dropped events: %d", got)
	}
	cancel() // second cancel is harmless
}

func TestPublishRacesWithCancel(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				b.Publish(event(domain.EventOpportunity, "x"))
			}
		}
	}()

	// A cancel that lands between the publisher reading the subscriber list
	// and sending would panic the publisher goroutine and fail the test.
	for i := 0; i < 500; i++ {
		ch, cancel := b.Subscribe(domain.EventOpportunity)
		go func() {
			for range ch {
			}
		}()
		cancel()
	}

	close(done)
	wg.Wait()
}

func TestCloseSemantics(t *testing.T) {
	b := newTestBus()
	ch, _ := b.Subscribe(domain.EventOpportunity)

	b.Close()
	if _, open := <-ch; open {
		t.Error("channel still open after bus close")
	}

	b.Publish(event(domain.EventOpportunity, "late")) // must not panic
	b.Close()                                         // double close is harmless

	lateCh, lateCancel := b.Subscribe(domain.EventOpportunity)
	if _, open := <-lateCh; open {
		t.Error("subscription on closed bus returned an open channel")
	}
	lateCancel()
}
