package flash

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

type fakePositions struct {
	positions map[string]domain.FlashPosition
}

func (f *fakePositions) ActivePositions() map[string]domain.FlashPosition {
	if f.positions == nil {
		return map[string]domain.FlashPosition{}
	}
	return f.positions
}

func testRiskManager(cfg RiskConfig, src PositionSource) *RiskManager {
	if src == nil {
		src = &fakePositions{}
	}
	r := NewRiskManager(cfg, src, discardLogger())
	// Pin the time-of-day component to the low-risk midday tier.
	r.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func baseConfig() RiskConfig {
	return RiskConfig{
		BasePositionSize:   100,
		MinPositionSize:    10,
		MaxSlippagePercent: 3,
		MaxConcurrent:      5,
	}
}

func moveEvent(velocity, momentum, spike, confidence float64) *domain.FlashMoveEvent {
	return &domain.FlashMoveEvent{
		TokenID:     "tok",
		Velocity:    velocity,
		Momentum:    momentum,
		VolumeSpike: spike,
		Confidence:  confidence,
	}
}

func TestAssessScoresModerateMove(t *testing.T) {
	r := testRiskManager(baseConfig(), nil)

	a := r.Assess(moveEvent(0.04, 1.0, 1.0, 0.9))
	if a.TooRisky {
		t.Fatalf("moderate move vetoed: %s", a.Reason)
	}
	// 0.04*30 + velocity tier 15 + momentum tier 20 + volume tier 1 +
	// midday 2 = 39.2
	if math.Abs(a.RiskScore-39.2) > 1e-9 {
		t.Errorf("score = %v, want 39.2", a.RiskScore)
	}
	if h := r.ScoreHistory("tok"); len(h) != 1 || h[0] != a.RiskScore {
		t.Errorf("score history = %v", h)
	}
}

func TestAssessScoreGrowsWithVelocity(t *testing.T) {
	r := testRiskManager(baseConfig(), nil)

	slow := r.Assess(moveEvent(0.035, 0.5, 1.0, 0.9))
	fast := r.Assess(moveEvent(0.12, 0.5, 1.0, 0.9))
	if fast.RiskScore <= slow.RiskScore {
		t.Errorf("score not monotonic: fast %v <= slow %v", fast.RiskScore, slow.RiskScore)
	}
}

func TestAssessVetoes(t *testing.T) {
	kill := baseConfig()
	kill.VolatilityKill = true

	cases := []struct {
		name   string
		cfg    RiskConfig
		ev     *domain.FlashMoveEvent
		reason string
	}{
		{"kill switch", kill, moveEvent(3.0, 1.0, 12.0, 0.9), "kill-switch"},
		{"low confidence", baseConfig(), moveEvent(0.04, 0.5, 1.0, 0.2), "confidence"},
		{"manipulation", baseConfig(), moveEvent(0.6, 0.5, 1.0, 0.9), "manipulation"},
	}
	for _, tc := range cases {
		r := testRiskManager(tc.cfg, nil)
		a := r.Assess(tc.ev)
		if !a.TooRisky {
			t.Errorf("%s: not vetoed (score %v)", tc.name, a.RiskScore)
			continue
		}
		if !strings.Contains(a.Reason, tc.reason) {
			t.Errorf("%s: reason = %q, want mention of %q", tc.name, a.Reason, tc.reason)
		}
	}

	// The same extreme move without the kill switch still trips the
	// manipulation veto.
	r := testRiskManager(baseConfig(), nil)
	if a := r.Assess(moveEvent(3.0, 1.0, 12.0, 0.9)); !a.TooRisky || !strings.Contains(a.Reason, "manipulation") {
		t.Errorf("extreme move with kill switch off: %+v", a)
	}
}

func TestPositionSizing(t *testing.T) {
	r := testRiskManager(baseConfig(), nil)

	// Low-risk, full-confidence events get the whole base size.
	if got := r.positionSize(1.0, 20); got != 100 {
		t.Errorf("full confidence low risk size = %v, want 100", got)
	}
	// Confidence scales the base down.
	if got := r.positionSize(0.5, 20); got != 75 {
		t.Errorf("mid confidence size = %v, want 75", got)
	}
	// Elevated risk shrinks the allocation.
	if got := r.positionSize(1.0, 40); math.Abs(got-70) > 1e-9 {
		t.Errorf("score>30 size = %v, want 70", got)
	}
	if got := r.positionSize(1.0, 60); got != 50 {
		t.Errorf("score>50 size = %v, want 50", got)
	}
	// The floor always holds.
	small := baseConfig()
	small.BasePositionSize = 12
	rs := testRiskManager(small, nil)
	if got := rs.positionSize(0.0, 60); got != 10 {
		t.Errorf("floored size = %v, want 10", got)
	}
}

func TestPositionSizingPortfolioBreach(t *testing.T) {
	full := map[string]domain.FlashPosition{}
	for i := 0; i < 5; i++ {
		full[string(rune('a'+i))] = domain.FlashPosition{
			TokenID:    string(rune('a' + i)),
			EntryPrice: 0.5,
			Shares:     100,
			State:      domain.PositionOpened,
			OpenedAt:   time.Now(),
		}
	}
	r := testRiskManager(baseConfig(), &fakePositions{positions: full})

	// Concurrency cap reached: the allocation is halved.
	if got := r.positionSize(1.0, 20); got != 50 {
		t.Errorf("size at concurrency cap = %v, want 50", got)
	}
}

func TestStrategySelection(t *testing.T) {
	r := testRiskManager(baseConfig(), nil)

	cases := []struct {
		conf, score float64
		want        domain.ExecutionStrategy
	}{
		{0.9, 30, domain.StrategyAggressive},
		{0.9, 50, domain.StrategyAdaptive},
		{0.4, 30, domain.StrategyConservative},
		{0.7, 70, domain.StrategyConservative},
		{0.7, 50, domain.StrategyAdaptive},
	}
	for _, tc := range cases {
		if got := r.strategy(tc.conf, tc.score); got != tc.want {
			t.Errorf("strategy(%v, %v) = %v, want %v", tc.conf, tc.score, got, tc.want)
		}
	}

	pref := baseConfig()
	pref.PreferredStrategy = domain.StrategyConservative
	rp := testRiskManager(pref, nil)
	if got := rp.strategy(0.9, 10); got != domain.StrategyConservative {
		t.Errorf("preferred strategy not honored: %v", got)
	}
}

func TestSlippageAllowance(t *testing.T) {
	r := testRiskManager(baseConfig(), nil)

	if got := r.slippage(0.5, 30); got != 3 {
		t.Errorf("baseline slippage = %v, want 3", got)
	}
	if got := r.slippage(0.9, 30); got != 1.5 {
		t.Errorf("high confidence slippage = %v, want 1.5", got)
	}
	if got := r.slippage(0.5, 70); got != 4.5 {
		t.Errorf("high risk slippage = %v, want 4.5", got)
	}

	wide := baseConfig()
	wide.MaxSlippagePercent = 4
	rw := testRiskManager(wide, nil)
	if got := rw.slippage(0.5, 70); got != 5 {
		t.Errorf("slippage not capped: %v, want 5", got)
	}
}

func TestTimeOfDayRisk(t *testing.T) {
	cases := []struct {
		hour int
		want float64
	}{
		{2, 10},
		{23, 8},
		{12, 2},
		{8, 5},
		{18, 5},
	}
	for _, tc := range cases {
		if got := timeOfDayRisk(tc.hour); got != tc.want {
			t.Errorf("timeOfDayRisk(%d) = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestPortfolioMetrics(t *testing.T) {
	opened := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	positions := map[string]domain.FlashPosition{
		"a": {TokenID: "a", EntryPrice: 0.5, Shares: 200, OpenedAt: opened},
		"b": {TokenID: "b", EntryPrice: 0.4, CurrentPrice: 0.5, Shares: 100, OpenedAt: opened.Add(10 * time.Second)},
		"c": {TokenID: "c", EntryPrice: 0.2, Shares: 100, OpenedAt: opened.Add(20 * time.Second)},
	}
	r := testRiskManager(baseConfig(), &fakePositions{positions: positions})

	m := r.PortfolioMetrics()
	if m.ConcurrentCount != 3 {
		t.Errorf("concurrent = %d, want 3", m.ConcurrentCount)
	}
	if math.Abs(m.TotalExposure-170) > 1e-9 {
		t.Errorf("exposure = %v, want 170", m.TotalExposure)
	}
	if m.MaxSinglePosition != 100 {
		t.Errorf("max single = %v, want 100", m.MaxSinglePosition)
	}
	// All three opens within 30 seconds.
	if !m.CorrelationRisk {
		t.Error("correlated entries not flagged")
	}
	if m.RiskScore <= 0 || m.RiskScore > 100 {
		t.Errorf("risk score out of range: %v", m.RiskScore)
	}
}

func TestCorrelatedEntries(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if correlatedEntries([]time.Time{base, base.Add(time.Second)}) {
		t.Error("two positions flagged as correlated")
	}
	spread := []time.Time{base, base.Add(time.Minute), base.Add(2 * time.Minute)}
	if correlatedEntries(spread) {
		t.Error("spread-out opens flagged as correlated")
	}
	burst := []time.Time{base.Add(25 * time.Second), base, base.Add(10 * time.Second)}
	if !correlatedEntries(burst) {
		t.Error("burst of opens not flagged")
	}
}
