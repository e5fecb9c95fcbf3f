package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL. Legs
// are stored as a JSONB column since they are only ever read back whole.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// Create stores one detected arbitrage opportunity.
func (s *OpportunityStore) Create(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	legs, err := json.Marshal(opp.Legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal legs for %s: %w", opp.ID, err)
	}

	const query = `
		INSERT INTO opportunities (
			id, market_id, question, combined_cost, potential_profit,
			roi_percent, capacity_usd, crypto, legs, detected_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)`

	_, err = s.pool.Exec(ctx, query,
		opp.ID, opp.MarketID, opp.Question, opp.CombinedCost, opp.PotentialProfit,
		opp.ROIPercent, opp.CapacityUSD, opp.Crypto, legs, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListBefore returns every opportunity detected strictly before the cutoff,
// oldest first.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageOpportunity, error) {
	const query = `
		SELECT id, market_id, question, combined_cost, potential_profit,
			roi_percent, capacity_usd, crypto, legs, detected_at
		FROM opportunities
		WHERE detected_at < $1
		ORDER BY detected_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.ArbitrageOpportunity
	for rows.Next() {
		var opp domain.ArbitrageOpportunity
		var legs []byte
		if err := rows.Scan(
			&opp.ID, &opp.MarketID, &opp.Question, &opp.CombinedCost, &opp.PotentialProfit,
			&opp.ROIPercent, &opp.CapacityUSD, &opp.Crypto, &legs, &opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		if err := json.Unmarshal(legs, &opp.Legs); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal legs for %s: %w", opp.ID, err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate opportunities: %w", err)
	}
	return opps, nil
}

// DeleteBefore removes opportunities detected strictly before the cutoff and
// returns how many rows were dropped.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM opportunities WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}
