// Package market maintains the live in-memory view of every observed market
// and detects riskless cross-outcome arbitrage across their legs.
package market

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

// placeholderQuestion marks snapshots synthesized from a quote for a
// market we have not seen a new_market event for yet.
const placeholderQuestion = "(pending market metadata)"

// defaultExpectedLegs is assumed for lazily created snapshots until real
// metadata arrives. Binary markets dominate the feed.
const defaultExpectedLegs = 2

// Store is the in-memory market state store: one mutable snapshot per market
// identifier, updated by every price/new-market event. Entries are never
// explicitly destroyed; memory is bounded by the active market count.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.MarketSnapshot
	byToken   map[string]string // token ID -> market ID
	logger    *slog.Logger
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		snapshots: make(map[string]*domain.MarketSnapshot),
		byToken:   make(map[string]string),
		logger:    logger.With(slog.String("component", "market_store")),
	}
}

// UpsertMarket populates (or creates) the snapshot for a new_market event.
// Legs are built index-aligned from assetIDs and outcomes; a missing outcome
// label defaults to "Outcome <index>". A market with exactly two legs is
// negative-risk. Existing quoted prices survive the upsert.
func (s *Store) UpsertMarket(marketID, question, slug, image string, assetIDs, outcomes []string) *domain.MarketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	snap, ok := s.snapshots[marketID]
	if !ok {
		snap = &domain.MarketSnapshot{
			MarketID:  marketID,
			Outcomes:  make(map[string]*domain.OutcomeLeg),
			CreatedAt: now,
		}
		s.snapshots[marketID] = snap
	}

	snap.Question = question
	snap.Slug = slug
	snap.Image = image
	snap.State = domain.SnapshotPopulated
	snap.Crypto = IsCryptoQuestion(question)
	snap.ExpectedLegs = len(assetIDs)
	snap.NegRisk = len(assetIDs) == 2
	snap.UpdatedAt = now

	for i, tokenID := range assetIDs {
		label := ""
		if i < len(outcomes) {
			label = outcomes[i]
		}
		if label == "" {
			label = fmt.Sprintf("Outcome %d", i)
		}

		leg, ok := snap.Outcomes[tokenID]
		if !ok {
			leg = &domain.OutcomeLeg{TokenID: tokenID}
			snap.Outcomes[tokenID] = leg
		}
		leg.Outcome = label
		s.byToken[tokenID] = marketID
	}

	return snap
}

// ApplyQuote upserts the leg's best-ask price for a token. An unseen market
// gets a placeholder snapshot so out-of-order feeds never drop
// data. It returns the owning market ID and whether the market has now
// received a quote on every expected leg.
func (s *Store) ApplyQuote(marketID, tokenID string, bestAsk float64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if marketID == "" {
		marketID = s.byToken[tokenID]
	}
	if marketID == "" {
		// Quote for a token we cannot attribute at all: synthesize a
		// market keyed by the token so the data is not lost.
		marketID = "pending:" + tokenID
	}

	now := time.Now().UTC()
	snap, ok := s.snapshots[marketID]
	if !ok {
		snap = &domain.MarketSnapshot{
			MarketID:     marketID,
			Question:     placeholderQuestion,
			State:        domain.SnapshotPending,
			Outcomes:     make(map[string]*domain.OutcomeLeg),
			ExpectedLegs: defaultExpectedLegs,
			CreatedAt:    now,
		}
		s.snapshots[marketID] = snap
		s.logger.Debug("placeholder snapshot created for unseen market",
			slog.String("market", marketID),
			slog.String("token", tokenID),
		)
	}

	leg, ok := snap.Outcomes[tokenID]
	if !ok {
		leg = &domain.OutcomeLeg{
			TokenID: tokenID,
			Outcome: fmt.Sprintf("Outcome %d", len(snap.Outcomes)),
		}
		snap.Outcomes[tokenID] = leg
		s.byToken[tokenID] = marketID
	}

	if leg.Price == 0 && bestAsk != 0 {
		snap.PricedLegs++
	}
	leg.Price = bestAsk
	snap.UpdatedAt = now

	return marketID, snap.ExpectedLegs > 0 && snap.PricedLegs >= snap.ExpectedLegs
}

// MarkResolved flips the snapshot into the resolved state. Unknown markets
// are a no-op.
func (s *Store) MarkResolved(marketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.snapshots[marketID]; ok {
		snap.State = domain.SnapshotResolved
		snap.UpdatedAt = time.Now().UTC()
	}
}

// Enrich fills metadata gaps on a pending snapshot from the REST polling
// fallback. Populated snapshots keep their socket-delivered metadata.
func (s *Store) Enrich(marketID, question, slug, image string, tokenIDs, outcomes []string) {
	s.mu.Lock()
	snap, ok := s.snapshots[marketID]
	if !ok || snap.State != domain.SnapshotPending {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.UpsertMarket(marketID, question, slug, image, tokenIDs, outcomes)
}

// Snapshot returns the live snapshot for a market, or nil. The pointer is
// shared; callers must treat it as read-only.
func (s *Store) Snapshot(marketID string) *domain.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[marketID]
}

// AnalysisCopy returns a detached copy of a market's snapshot, including its
// leg map, so analysis can read it while feed and poller goroutines keep
// mutating the store. Returns nil for unknown markets.
func (s *Store) AnalysisCopy(marketID string) *domain.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[marketID]
	if !ok {
		return nil
	}
	cp := *snap
	cp.Outcomes = make(map[string]*domain.OutcomeLeg, len(snap.Outcomes))
	for tokenID, leg := range snap.Outcomes {
		legCopy := *leg
		cp.Outcomes[tokenID] = &legCopy
	}
	return &cp
}

// MarketForToken resolves the owning market for a token ID.
func (s *Store) MarketForToken(tokenID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[tokenID]
	return id, ok
}

// TokenContext returns display metadata for the market owning a token, for
// event enrichment. ok is false when the token has never been observed.
func (s *Store) TokenContext(tokenID string) (conditionID, question, slug, image string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	marketID, found := s.byToken[tokenID]
	if !found {
		return "", "", "", "", false
	}
	snap, found := s.snapshots[marketID]
	if !found {
		return marketID, "", "", "", false
	}
	return marketID, snap.Question, snap.Slug, snap.Image, true
}

// Len reports the number of tracked markets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
