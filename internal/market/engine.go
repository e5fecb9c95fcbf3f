package market

import (
	"log/slog"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

// AssetSubscriber requests per-asset quote updates from the feed.
type AssetSubscriber interface {
	SubscribeAssets(assetIDs []string) error
}

// Engine binds the market state store and the arbitrage detector to the
// event feed: new-market events build leg maps and subscriptions, quote
// events update legs and trigger analysis once a market is fully quoted.
type Engine struct {
	store      *Store
	detector   *Detector
	subscriber AssetSubscriber
	logger     *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(store *Store, detector *Detector, subscriber AssetSubscriber, logger *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		detector:   detector,
		subscriber: subscriber,
		logger:     logger.With(slog.String("component", "market_engine")),
	}
}

// HandleNewMarket processes a new_market event: build the leg map and
// subscribe to quote updates for every leg.
func (e *Engine) HandleNewMarket(marketID, question, slug, image string, assetIDs, outcomes []string) {
	if marketID == "" || len(assetIDs) == 0 {
		return
	}

	snap := e.store.UpsertMarket(marketID, question, slug, image, assetIDs, outcomes)
	e.logger.Debug("market registered",
		slog.String("market", marketID),
		slog.Int("legs", snap.ExpectedLegs),
		slog.Bool("crypto", snap.Crypto),
	)

	if err := e.subscriber.SubscribeAssets(assetIDs); err != nil {
		// Transient: the subscription is replayed on reconnect.
		e.logger.Warn("asset subscription failed",
			slog.String("market", marketID),
			slog.String("error", err.Error()),
		)
	}
}

// HandleQuote processes a best_bid_ask event. Analysis runs only once the
// observed leg count reaches the market's expected total, guarding against
// partial data.
func (e *Engine) HandleQuote(marketID, tokenID string, bestAsk float64) {
	if tokenID == "" {
		return
	}

	id, ready := e.store.ApplyQuote(marketID, tokenID, bestAsk)
	if !ready {
		return
	}

	// The poller may enrich this market concurrently; analysis reads a
	// detached copy so it never races the store's writes.
	snap := e.store.AnalysisCopy(id)
	if snap == nil || snap.State == domain.SnapshotResolved {
		return
	}
	e.detector.Analyze(snap)
}

// HandleResolved processes a market_resolved event: the snapshot is marked
// resolved and any live opportunity dropped.
func (e *Engine) HandleResolved(marketID string) {
	if marketID == "" {
		return
	}
	e.store.MarkResolved(marketID)
	e.detector.Drop(marketID)
}

// HandleMeta feeds polled REST metadata into pending snapshots.
func (e *Engine) HandleMeta(conditionID, question, slug, image string, tokenIDs, outcomes []string) {
	if conditionID == "" {
		return
	}
	e.store.Enrich(conditionID, question, slug, image, tokenIDs, outcomes)
}

// Store exposes the underlying state store for read access.
func (e *Engine) Store() *Store { return e.store }

// Detector exposes the underlying detector for read access.
func (e *Engine) Detector() *Detector { return e.detector }
