package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

// FlashStore implements domain.FlashRecordStore using PostgreSQL.
type FlashStore struct {
	pool *pgxpool.Pool
}

// NewFlashStore creates a FlashStore backed by the given connection pool.
func NewFlashStore(pool *pgxpool.Pool) *FlashStore {
	return &FlashStore{pool: pool}
}

var _ domain.FlashRecordStore = (*FlashStore)(nil)

const flashSelectCols = `id, token_id, condition_id, question,
	old_price, new_price, velocity, momentum, volume_spike,
	confidence, risk_score, strategy, executed, slippage, reason,
	detected_at, recorded_at`

// Create stores one flash move record.
func (s *FlashStore) Create(ctx context.Context, rec domain.FlashRecord) error {
	const query = `
		INSERT INTO flash_history (
			id, token_id, condition_id, question,
			old_price, new_price, velocity, momentum, volume_spike,
			confidence, risk_score, strategy, executed, slippage, reason,
			detected_at, recorded_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17
		)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.TokenID, rec.ConditionID, rec.Question,
		rec.OldPrice, rec.NewPrice, rec.Velocity, rec.Momentum, rec.VolumeSpike,
		rec.Confidence, rec.RiskScore, string(rec.Strategy), rec.Executed, rec.Slippage, rec.Reason,
		rec.DetectedAt, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert flash record %s: %w", rec.ID, err)
	}
	return nil
}

// ListBefore returns every flash record detected strictly before the cutoff,
// oldest first.
func (s *FlashStore) ListBefore(ctx context.Context, before time.Time) ([]domain.FlashRecord, error) {
	query := `SELECT ` + flashSelectCols + `
		FROM flash_history
		WHERE detected_at < $1
		ORDER BY detected_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list flash records: %w", err)
	}
	defer rows.Close()

	var recs []domain.FlashRecord
	for rows.Next() {
		var rec domain.FlashRecord
		var strategy string
		if err := rows.Scan(
			&rec.ID, &rec.TokenID, &rec.ConditionID, &rec.Question,
			&rec.OldPrice, &rec.NewPrice, &rec.Velocity, &rec.Momentum, &rec.VolumeSpike,
			&rec.Confidence, &rec.RiskScore, &strategy, &rec.Executed, &rec.Slippage, &rec.Reason,
			&rec.DetectedAt, &rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan flash record: %w", err)
		}
		rec.Strategy = domain.ExecutionStrategy(strategy)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate flash records: %w", err)
	}
	return recs, nil
}

// DeleteBefore removes flash records detected strictly before the cutoff and
// returns how many rows were dropped. The archiver calls this after a
// successful upload.
func (s *FlashStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM flash_history WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete flash records: %w", err)
	}
	return tag.RowsAffected(), nil
}
