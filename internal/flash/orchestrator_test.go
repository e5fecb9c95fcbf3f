package flash

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

type fakeMarketInfo struct{}

func (fakeMarketInfo) TokenContext(tokenID string) (string, string, string, string, bool) {
	if tokenID == "tok" {
		return "cond-1", "Will BTC hit $100k?", "btc-100k", "img.png", true
	}
	return "", "", "", "", false
}

type fakeRecordStore struct {
	mu      sync.Mutex
	records []domain.FlashRecord
	err     error
}

func (f *fakeRecordStore) Create(_ context.Context, rec domain.FlashRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return f.err
}

func (f *fakeRecordStore) ListBefore(context.Context, time.Time) ([]domain.FlashRecord, error) {
	return nil, nil
}

func testOrchestrator(trader domain.TradeExecutor, records domain.FlashRecordStore) (*Orchestrator, *capturePublisher) {
	pub := &capturePublisher{}
	detector := NewDetector(DetectorConfig{WindowSize: 3, VelocityThreshold: 0.03, Cooldown: 15 * time.Second}, discardLogger())
	engine := NewExecutionEngine(trader, pub, discardLogger())
	risk := NewRiskManager(RiskConfig{
		BasePositionSize:   100,
		MinPositionSize:    10,
		MaxSlippagePercent: 3,
		MaxConcurrent:      5,
	}, engine, discardLogger())
	risk.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return NewOrchestrator(detector, risk, engine, fakeMarketInfo{}, records, pub, discardLogger()), pub
}

func driveMove(o *Orchestrator, token string, prices []float64) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, p := range prices {
		o.HandleTick(context.Background(), token, p, 0, start.Add(time.Duration(i)*time.Second))
	}
}

func TestHandleTickExecutesAndPersists(t *testing.T) {
	trader := fillTrader(0.52, 190)
	records := &fakeRecordStore{}
	o, pub := testOrchestrator(trader, records)

	driveMove(o, "tok", []float64{0.500, 0.510, 0.520})

	if got := len(pub.byKind(domain.EventFlashMoveDetected)); got != 1 {
		t.Fatalf("detected events = %d, want 1", got)
	}
	if got := len(pub.byKind(domain.EventFlashMoveExecuted)); got != 1 {
		t.Fatalf("executed events = %d, want 1", got)
	}

	detected := pub.byKind(domain.EventFlashMoveDetected)[0].Payload.(*domain.FlashMoveEvent)
	if detected.ConditionID != "cond-1" || detected.Question != "Will BTC hit $100k?" {
		t.Errorf("event not enriched: %+v", detected)
	}
	if detected.RiskScore <= 0 {
		t.Error("risk score not stamped on event")
	}

	records.mu.Lock()
	defer records.mu.Unlock()
	if len(records.records) != 1 {
		t.Fatalf("persisted records = %d, want 1", len(records.records))
	}
	rec := records.records[0]
	if !rec.Executed || rec.TokenID != "tok" || rec.ConditionID != "cond-1" || rec.ID == "" {
		t.Errorf("record = %+v", rec)
	}
}

func TestHandleTickVetoSkipsExecution(t *testing.T) {
	trader := fillTrader(0.52, 190)
	o, pub := testOrchestrator(trader, nil)

	// A 60% jump carries a manipulation signature.
	driveMove(o, "tok", []float64{0.500, 0.600, 0.800})

	if got := len(pub.byKind(domain.EventFlashMoveDetected)); got != 1 {
		t.Fatalf("detected events = %d, want 1", got)
	}
	if got := len(pub.byKind(domain.EventFlashMoveExecuted)); got != 0 {
		t.Errorf("executed events = %d, want 0", got)
	}
	if len(trader.calls()) != 0 {
		t.Errorf("trader called %d times on vetoed move", len(trader.calls()))
	}
}

func TestHandleTickDisabled(t *testing.T) {
	trader := fillTrader(0.52, 190)
	o, pub := testOrchestrator(trader, nil)

	o.Disable(context.Background())
	if o.Enabled() {
		t.Fatal("still enabled after Disable")
	}
	driveMove(o, "tok", []float64{0.500, 0.510, 0.520})
	if got := len(pub.byKind(domain.EventFlashMoveDetected)); got != 0 {
		t.Errorf("disabled pipeline published %d events", got)
	}

	o.Enable()
	driveMove(o, "tok2", []float64{0.500, 0.510, 0.520})
	if got := len(pub.byKind(domain.EventFlashMoveDetected)); got != 1 {
		t.Errorf("re-enabled pipeline published %d events, want 1", got)
	}
}

func TestHandleTickPersistFailureIsSwallowed(t *testing.T) {
	trader := fillTrader(0.52, 190)
	records := &fakeRecordStore{err: errors.New("db down")}
	o, pub := testOrchestrator(trader, records)

	driveMove(o, "tok", []float64{0.500, 0.510, 0.520})

	// The trade still went through and was announced.
	if got := len(pub.byKind(domain.EventFlashMoveExecuted)); got != 1 {
		t.Errorf("executed events = %d, want 1", got)
	}
}

func TestDisableClosesPositions(t *testing.T) {
	trader := fillTrader(0.52, 190)
	o, pub := testOrchestrator(trader, nil)

	driveMove(o, "tok", []float64{0.500, 0.510, 0.520})
	if o.Stats().Successes != 1 {
		t.Fatal("setup: no position opened")
	}

	o.Disable(context.Background())
	if got := len(pub.byKind(domain.EventPositionClosed)); got != 1 {
		t.Errorf("position_closed events = %d, want 1", got)
	}
}
