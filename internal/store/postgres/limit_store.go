package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wagerhouse/bookd/internal/domain"
)

// LimitStore implements domain.LimitStore using PostgreSQL.
type LimitStore struct {
	pool *pgxpool.Pool
}

// NewLimitStore creates a new LimitStore backed by the given connection pool.
func NewLimitStore(pool *pgxpool.Pool) *LimitStore {
	return &LimitStore{pool: pool}
}

// UpsertRows writes exposure rows for a market in a single batch round trip.
func (s *LimitStore) UpsertRows(ctx context.Context, marketID string, rows map[domain.ExposureSlot]domain.LimitRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO exposure_limits (market_id, slot, max_win, current_win, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (market_id, slot) DO UPDATE SET
			max_win     = EXCLUDED.max_win,
			current_win = EXCLUDED.current_win,
			updated_at  = NOW()`

	for slot, row := range rows {
		batch.Queue(query, marketID, string(slot), row.Max, row.Current)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(rows); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert exposure row %d for %s: %w", i, marketID, err)
		}
	}
	return nil
}

// Get reassembles a market's exposure snapshot from its stored rows.
func (s *LimitStore) Get(ctx context.Context, marketID string) (domain.ExposureSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT slot, max_win, current_win FROM exposure_limits WHERE market_id = $1`,
		marketID)
	if err != nil {
		return domain.ExposureSnapshot{}, fmt.Errorf("postgres: get exposure for %s: %w", marketID, err)
	}
	defer rows.Close()

	snap := domain.ExposureSnapshot{Slots: make(map[domain.ExposureSlot]domain.LimitRow)}
	found := false
	for rows.Next() {
		var slot string
		var row domain.LimitRow
		if err := rows.Scan(&slot, &row.Max, &row.Current); err != nil {
			return domain.ExposureSnapshot{}, fmt.Errorf("postgres: scan exposure row for %s: %w", marketID, err)
		}
		found = true
		if domain.ExposureSlot(slot) == domain.SlotGlobal {
			snap.Global = row
		} else {
			snap.Slots[domain.ExposureSlot(slot)] = row
		}
	}
	if err := rows.Err(); err != nil {
		return domain.ExposureSnapshot{}, fmt.Errorf("postgres: exposure rows for %s: %w", marketID, err)
	}
	if !found {
		return domain.ExposureSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

// DeleteByMarket removes a market's exposure rows.
func (s *LimitStore) DeleteByMarket(ctx context.Context, marketID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM exposure_limits WHERE market_id = $1`, marketID)
	if err != nil {
		return fmt.Errorf("postgres: delete exposure rows for %s: %w", marketID, err)
	}
	return nil
}
