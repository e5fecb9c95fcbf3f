package flash

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

const (
	// manipulationVelocity is the |velocity| beyond which a move looks like
	// manipulation rather than genuine repricing.
	manipulationVelocity = 0.5
	// minConfidence is the floor below which events are vetoed outright.
	minConfidence = 0.3
	// killSwitchScore is the score above which the volatility kill-switch
	// vetoes execution.
	killSwitchScore = 90
	// slippageCapPercent hard-caps the allowed slippage.
	slippageCapPercent = 5.0
	// scoreHistoryLen bounds the per-token score history kept for trend
	// tracking.
	scoreHistoryLen = 10
	// correlationWindow flags correlated entries: 3+ positions opened
	// within this span of each other.
	correlationWindow = 30 * time.Second
)

// PositionSource exposes the live position set for portfolio-level checks.
type PositionSource interface {
	ActivePositions() map[string]domain.FlashPosition
}

// RiskConfig holds the risk manager's tunables.
type RiskConfig struct {
	BasePositionSize   float64
	MinPositionSize    float64
	MaxSlippagePercent float64
	MaxConcurrent      int
	VolatilityKill     bool
	// PreferredStrategy, when non-adaptive, overrides the per-event
	// recommendation unconditionally.
	PreferredStrategy domain.ExecutionStrategy
}

// RiskManager scores flash-move events across five risk dimensions, decides
// whether they are too risky to act on, and sizes positions under
// portfolio-wide guardrails.
type RiskManager struct {
	cfg       RiskConfig
	positions PositionSource
	logger    *slog.Logger

	mu      sync.Mutex
	history map[string][]float64

	now func() time.Time
}

// NewRiskManager creates a RiskManager reading live positions from the
// given source.
func NewRiskManager(cfg RiskConfig, positions PositionSource, logger *slog.Logger) *RiskManager {
	if cfg.MinPositionSize <= 0 {
		cfg.MinPositionSize = 10
	}
	return &RiskManager{
		cfg:       cfg,
		positions: positions,
		logger:    logger.With(slog.String("component", "flash_risk")),
		history:   make(map[string][]float64),
		now:       time.Now,
	}
}

// Assess scores the event and produces the execution recommendation. Hard
// vetoes (kill-switch, low confidence, manipulation signature) are
// independent of the numeric score.
func (r *RiskManager) Assess(ev *domain.FlashMoveEvent) domain.RiskAssessment {
	score := r.score(ev, r.now().Hour())
	r.recordScore(ev.TokenID, score)

	assessment := domain.RiskAssessment{
		RiskScore:           score,
		RecommendedStrategy: r.strategy(ev.Confidence, score),
		PositionSize:        r.positionSize(ev.Confidence, score),
		MaxSlippage:         r.slippage(ev.Confidence, score),
	}

	switch {
	case r.cfg.VolatilityKill && score > killSwitchScore:
		assessment.TooRisky = true
		assessment.Reason = fmt.Sprintf("volatility kill-switch: score %.0f > %d", score, killSwitchScore)
	case ev.Confidence < minConfidence:
		assessment.TooRisky = true
		assessment.Reason = fmt.Sprintf("confidence %.2f below minimum %.2f", ev.Confidence, minConfidence)
	case math.Abs(ev.Velocity) > manipulationVelocity:
		assessment.TooRisky = true
		assessment.Reason = fmt.Sprintf("velocity %.2f looks like manipulation", ev.Velocity)
	}

	if assessment.TooRisky {
		r.logger.Warn("flash move vetoed",
			slog.String("token", ev.TokenID),
			slog.String("reason", assessment.Reason),
		)
	}
	return assessment
}

// score sums the five risk dimensions, capped at 100. localHour is the
// local wall-clock hour for the time-of-day component.
func (r *RiskManager) score(ev *domain.FlashMoveEvent, localHour int) float64 {
	absV := math.Abs(ev.Velocity)

	total := absV * 30 // volatility
	total += velocityTier(absV)
	total += momentumTier(math.Abs(ev.Momentum))
	total += volumeTier(ev.VolumeSpike)
	total += timeOfDayRisk(localHour)

	if total > 100 {
		total = 100
	}
	return total
}

func velocityTier(absV float64) float64 {
	switch {
	case absV > 0.1:
		return 40
	case absV > 0.05:
		return 25
	case absV > 0.03:
		return 15
	default:
		return 5
	}
}

func momentumTier(absM float64) float64 {
	switch {
	case absM > 0.5:
		return 20
	case absM > 0.2:
		return 10
	case absM > 0.1:
		return 5
	default:
		return 2
	}
}

func volumeTier(spike float64) float64 {
	switch {
	case spike > 10:
		return 15
	case spike > 5:
		return 8
	case spike > 2:
		return 3
	default:
		return 1
	}
}

// timeOfDayRisk is elevated overnight (thin books), minimal during core
// trading hours, baseline otherwise.
func timeOfDayRisk(hour int) float64 {
	switch {
	case hour < 6:
		return 10
	case hour >= 22:
		return 8
	case hour >= 10 && hour < 16:
		return 2
	default:
		return 5
	}
}

// strategy picks the execution strategy. A configured non-adaptive
// preference wins unconditionally.
func (r *RiskManager) strategy(confidence, score float64) domain.ExecutionStrategy {
	if r.cfg.PreferredStrategy != "" && r.cfg.PreferredStrategy != domain.StrategyAdaptive {
		return r.cfg.PreferredStrategy
	}
	switch {
	case confidence > 0.8 && score < 40:
		return domain.StrategyAggressive
	case confidence < 0.5 || score > 60:
		return domain.StrategyConservative
	default:
		return domain.StrategyAdaptive
	}
}

// positionSize scales the configured base size by confidence, shrinks it as
// risk grows, and halves it again when adding it would breach portfolio
// limits. The result never drops below the configured floor and never
// exceeds the unadjusted base size.
func (r *RiskManager) positionSize(confidence, score float64) float64 {
	size := r.cfg.BasePositionSize * (0.5 + 0.5*confidence)

	switch {
	case score > 50:
		size *= 0.5
	case score > 30:
		size *= 0.7
	}

	if r.wouldBreachPortfolio(size) {
		size *= 0.5
	}

	if size < r.cfg.MinPositionSize {
		size = r.cfg.MinPositionSize
	}
	return size
}

// wouldBreachPortfolio reports whether adding a position of the given size
// would exceed the exposure budget or the concurrent-position cap.
func (r *RiskManager) wouldBreachPortfolio(size float64) bool {
	positions := r.positions.ActivePositions()

	if len(positions) >= r.cfg.MaxConcurrent {
		return true
	}

	var exposure float64
	for _, p := range positions {
		exposure += p.Notional()
	}
	budget := float64(r.cfg.MaxConcurrent) * r.cfg.BasePositionSize * 2
	return exposure+size > budget
}

// slippage derives the per-trade slippage allowance: tighter for
// high-confidence events, looser for high-risk ones, hard-capped.
func (r *RiskManager) slippage(confidence, score float64) float64 {
	s := r.cfg.MaxSlippagePercent
	if confidence > 0.8 {
		s *= 0.5
	}
	if score > 60 {
		s *= 1.5
	}
	if s > slippageCapPercent {
		s = slippageCapPercent
	}
	return s
}

// recordScore appends to the bounded per-token score history.
func (r *RiskManager) recordScore(tokenID string, score float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := append(r.history[tokenID], score)
	if len(h) > scoreHistoryLen {
		h = h[len(h)-scoreHistoryLen:]
	}
	r.history[tokenID] = h
}

// ScoreHistory returns a copy of the recent scores for a token.
func (r *RiskManager) ScoreHistory(tokenID string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := r.history[tokenID]
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

// PortfolioMetrics recomputes portfolio-wide risk from the live position
// set. Correlation risk flags when 3 or more positions were opened within
// 30 seconds of each other.
func (r *RiskManager) PortfolioMetrics() domain.PortfolioRiskMetrics {
	positions := r.positions.ActivePositions()

	m := domain.PortfolioRiskMetrics{ConcurrentCount: len(positions)}
	opened := make([]time.Time, 0, len(positions))
	for _, p := range positions {
		notional := p.Notional()
		m.TotalExposure += notional
		if notional > m.MaxSinglePosition {
			m.MaxSinglePosition = notional
		}
		opened = append(opened, p.OpenedAt)
	}
	m.CorrelationRisk = correlatedEntries(opened)

	// Utilization of the exposure budget and the concurrency cap, blended.
	budget := float64(r.cfg.MaxConcurrent) * r.cfg.BasePositionSize * 2
	if budget > 0 {
		m.RiskScore = 60 * math.Min(1, m.TotalExposure/budget)
	}
	if r.cfg.MaxConcurrent > 0 {
		m.RiskScore += 40 * math.Min(1, float64(len(positions))/float64(r.cfg.MaxConcurrent))
	}
	if m.CorrelationRisk {
		m.RiskScore = math.Min(100, m.RiskScore+10)
	}
	return m
}

// correlatedEntries reports whether any 3 opens fall inside the
// correlation window.
func correlatedEntries(opened []time.Time) bool {
	if len(opened) < 3 {
		return false
	}
	sort.Slice(opened, func(i, j int) bool { return opened[i].Before(opened[j]) })
	for i := 0; i+2 < len(opened); i++ {
		if opened[i+2].Sub(opened[i]) <= correlationWindow {
			return true
		}
	}
	return false
}

// Cleanup trims per-token score histories for tokens with no recent
// activity. Histories are already bounded, so this only reclaims keys.
func (r *RiskManager) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token, h := range r.history {
		if len(h) == 0 {
			delete(r.history, token)
		}
	}
}
