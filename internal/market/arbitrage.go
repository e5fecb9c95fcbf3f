package market

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

const (
	// minCombinedCost filters pricing glitches: a whole market summing to
	// a cent is bad data, not free money.
	minCombinedCost = 0.01
	// maxCombinedCost requires a real spread before an opportunity exists.
	maxCombinedCost = 0.995
)

// DetectorConfig holds the arbitrage detector thresholds.
type DetectorConfig struct {
	// MinROIPercent is the minimum ROI for non-crypto markets.
	MinROIPercent float64
	// MinROIPercentCrypto accepts thinner edges on faster-moving crypto
	// price markets.
	MinROIPercentCrypto float64
	// HysteresisPP is the ROI improvement in percentage points required to
	// replace a live opportunity, so alerts do not oscillate.
	HysteresisPP float64
	// MaxAge bounds how old an opportunity may be when read back.
	MaxAge time.Duration
}

// Detector computes combined cost across a market's legs and raises an
// opportunity when a profitable spread exists. At most one live opportunity
// is retained per market.
type Detector struct {
	cfg       DetectorConfig
	publisher domain.EventPublisher
	logger    *slog.Logger

	mu   sync.RWMutex
	live map[string]*domain.ArbitrageOpportunity

	now func() time.Time
}

// NewDetector creates a Detector that publishes opportunity events to the
// given publisher.
func NewDetector(cfg DetectorConfig, publisher domain.EventPublisher, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:       cfg,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "arb_detector")),
		live:      make(map[string]*domain.ArbitrageOpportunity),
		now:       time.Now,
	}
}

// Analyze evaluates a fully-quoted market snapshot. It returns the emitted
// opportunity, or nil when the market carries no actionable spread or when
// an existing record stands (hysteresis).
//
// The caller guarantees every expected leg has been priced; degenerate legs
// (price <= 0 or >= 1, i.e. resolved or glitched outcomes) abort analysis.
func (d *Detector) Analyze(snap *domain.MarketSnapshot) *domain.ArbitrageOpportunity {
	if snap == nil || len(snap.Outcomes) == 0 {
		return nil
	}

	var cost float64
	legs := make([]domain.OpportunityLeg, 0, len(snap.Outcomes))
	minSize := -1.0
	for _, leg := range snap.Outcomes {
		if leg.Price <= 0 || leg.Price >= 1 {
			return nil
		}
		cost += leg.Price
		legs = append(legs, domain.OpportunityLeg{
			TokenID: leg.TokenID,
			Outcome: leg.Outcome,
			Price:   leg.Price,
			Size:    leg.Size,
		})
		if minSize < 0 || leg.Size < minSize {
			minSize = leg.Size
		}
	}
	sort.Slice(legs, func(i, j int) bool { return legs[i].Outcome < legs[j].Outcome })

	if cost <= minCombinedCost || cost >= maxCombinedCost {
		return nil
	}

	profit := 1 - cost
	roi := 100 * profit / cost

	minROI := d.cfg.MinROIPercent
	if snap.Crypto {
		minROI = d.cfg.MinROIPercentCrypto
	}
	if roi < minROI {
		return nil
	}

	// Capacity is conservative: quote feed carries no depth, so the min
	// leg size is usually 0 until an orderbook fetch fills it in.
	if minSize < 0 {
		minSize = 0
	}

	opp := &domain.ArbitrageOpportunity{
		ID:              uuid.New().String(),
		MarketID:        snap.MarketID,
		Question:        snap.Question,
		CombinedCost:    cost,
		PotentialProfit: profit,
		ROIPercent:      roi,
		CapacityUSD:     minSize * cost,
		Crypto:          snap.Crypto,
		Legs:            legs,
		DetectedAt:      d.now().UTC(),
	}

	d.mu.Lock()
	existing := d.live[snap.MarketID]
	if existing != nil && opp.ROIPercent <= existing.ROIPercent+d.cfg.HysteresisPP {
		// Improvement too small to be worth re-alerting; keep the stored
		// record and its timestamp untouched.
		d.mu.Unlock()
		return nil
	}
	d.live[snap.MarketID] = opp
	d.mu.Unlock()

	d.logger.Info("arbitrage opportunity",
		slog.String("market", opp.MarketID),
		slog.Float64("cost", opp.CombinedCost),
		slog.Float64("roi_percent", opp.ROIPercent),
		slog.Bool("crypto", opp.Crypto),
	)

	d.publisher.Publish(domain.Event{
		Kind:    domain.EventOpportunity,
		At:      opp.DetectedAt,
		Payload: opp,
	})
	return opp
}

// Drop removes the live opportunity for a market (used when the market
// resolves).
func (d *Detector) Drop(marketID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, marketID)
}

// LatestOpportunities returns the live opportunities sorted by descending
// ROI. Entries older than MaxAge are pruned before the read; the returned
// slice is a copy.
func (d *Detector) LatestOpportunities() []domain.ArbitrageOpportunity {
	cutoff := d.now().UTC().Add(-d.cfg.MaxAge)

	d.mu.Lock()
	out := make([]domain.ArbitrageOpportunity, 0, len(d.live))
	for id, opp := range d.live {
		if opp.DetectedAt.Before(cutoff) {
			delete(d.live, id)
			continue
		}
		out = append(out, *opp)
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ROIPercent > out[j].ROIPercent })
	return out
}

// Cleanup prunes aged opportunities. It exists so the orchestrator-level
// retention pass can run without a read.
func (d *Detector) Cleanup() {
	d.LatestOpportunities()
}
