package polymarket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

func TestReconnectDelay(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s capped
		{10, 30 * time.Second},
		{0, 2 * time.Second}, // clamped to attempt 1
	}
	for _, tc := range cases {
		if got := ReconnectDelay(tc.attempt, base, max); got != tc.want {
			t.Errorf("ReconnectDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}

	// Shift overflow on huge attempt counts must still land on the cap.
	if got := ReconnectDelay(64, base, max); got != max {
		t.Errorf("ReconnectDelay(64) = %v, want %v", got, max)
	}
}

func TestRunStopsAfterReconnectBudget(t *testing.T) {
	// Nothing listens on port 1, so every dial fails immediately.
	w := NewWSClient(WSConfig{
		URL:           "ws://127.0.0.1:1",
		ReconnectBase: time.Millisecond,
		ReconnectMax:  2 * time.Millisecond,
		MaxReconnects: 2,
		Logger:        discardLogger(),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()

	var err error
	select {
	case err = <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after exhausting the reconnect budget")
	}
	if !errors.Is(err, domain.ErrMaxReconnects) {
		t.Fatalf("Run error = %v, want ErrMaxReconnects", err)
	}

	st := w.Status()
	if st.State != StateErrored {
		t.Errorf("state = %v, want %v", st.State, StateErrored)
	}
	if st.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", st.Attempts)
	}
	if st.LastErr == "" {
		t.Error("last error not recorded")
	}

	// The loop has given up for good: no further attempts are scheduled.
	time.Sleep(20 * time.Millisecond)
	if got := w.Status().Attempts; got != 3 {
		t.Errorf("attempts after exit = %d, want 3", got)
	}
}

func TestSubscribeAssetsDeduplicates(t *testing.T) {
	w := NewWSClient(WSConfig{
		URL:    "ws://127.0.0.1:1",
		Logger: discardLogger(),
	})

	if err := w.SubscribeAssets([]string{"tok-a", "tok-b"}); err != nil {
		t.Fatalf("SubscribeAssets: %v", err)
	}
	if err := w.SubscribeAssets([]string{"tok-b", "tok-a", "tok-c"}); err != nil {
		t.Fatalf("SubscribeAssets: %v", err)
	}
	// Periodic refreshes resubmit the same working set; the replay list
	// must not grow from them.
	for i := 0; i < 100; i++ {
		if err := w.SubscribeAssets([]string{"tok-a", "tok-b", "tok-c"}); err != nil {
			t.Fatalf("SubscribeAssets: %v", err)
		}
	}

	w.mu.Lock()
	got := append([]string(nil), w.assetSubs...)
	w.mu.Unlock()

	want := []string{"tok-a", "tok-b", "tok-c"}
	if len(got) != len(want) {
		t.Fatalf("replay set = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("replay set[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
