package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wagerhouse/bookd/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, home_team, away_team, external_id, scheduled_at, state,
	ml_home, ml_away, ml_draw,
	spread_line, spread_home, spread_away,
	total_line, total_over, total_under,
	odds_frozen, opening_line, push_policy,
	home_score, away_score, settled_at, created_at, updated_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var state, policy string
	err := row.Scan(
		&m.ID, &m.HomeTeam, &m.AwayTeam, &m.ExternalID, &m.ScheduledAt, &state,
		&m.Odds.MoneylineHome, &m.Odds.MoneylineAway, &m.Odds.MoneylineDraw,
		&m.Odds.SpreadLine, &m.Odds.SpreadHome, &m.Odds.SpreadAway,
		&m.Odds.TotalLine, &m.Odds.TotalOver, &m.Odds.TotalUnder,
		&m.OddsFrozen, &m.OpeningLine, &policy,
		&m.HomeScore, &m.AwayScore, &m.SettledAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.State = domain.MarketState(state)
	m.PushPolicy = domain.PushPolicy(policy)
	return m, nil
}

func scanMarkets(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// Create inserts a new market record.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, home_team, away_team, external_id, scheduled_at, state,
			ml_home, ml_away, ml_draw,
			spread_line, spread_home, spread_away,
			total_line, total_over, total_under,
			odds_frozen, opening_line, push_policy,
			home_score, away_score, settled_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12,
			$13, $14, $15,
			$16, $17, $18,
			$19, $20, $21, $22, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.HomeTeam, m.AwayTeam, m.ExternalID, m.ScheduledAt, string(m.State),
		m.Odds.MoneylineHome, m.Odds.MoneylineAway, m.Odds.MoneylineDraw,
		m.Odds.SpreadLine, m.Odds.SpreadHome, m.Odds.SpreadAway,
		m.Odds.TotalLine, m.Odds.TotalOver, m.Odds.TotalUnder,
		m.OddsFrozen, m.OpeningLine, string(m.PushPolicy),
		m.HomeScore, m.AwayScore, m.SettledAt, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	return nil
}

// Update replaces all mutable fields of a market.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	const query = `
		UPDATE markets SET
			home_team    = $2,
			away_team    = $3,
			external_id  = $4,
			scheduled_at = $5,
			state        = $6,
			ml_home      = $7,
			ml_away      = $8,
			ml_draw      = $9,
			spread_line  = $10,
			spread_home  = $11,
			spread_away  = $12,
			total_line   = $13,
			total_over   = $14,
			total_under  = $15,
			odds_frozen  = $16,
			opening_line = $17,
			push_policy  = $18,
			home_score   = $19,
			away_score   = $20,
			settled_at   = $21,
			updated_at   = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		m.ID, m.HomeTeam, m.AwayTeam, m.ExternalID, m.ScheduledAt, string(m.State),
		m.Odds.MoneylineHome, m.Odds.MoneylineAway, m.Odds.MoneylineDraw,
		m.Odds.SpreadLine, m.Odds.SpreadHome, m.Odds.SpreadAway,
		m.Odds.TotalLine, m.Odds.TotalOver, m.Odds.TotalUnder,
		m.OddsFrozen, m.OpeningLine, string(m.PushPolicy),
		m.HomeScore, m.AwayScore, m.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns markets filtered by state with pagination and optional time
// filtering. An empty states slice matches every state.
func (s *MarketStore) List(ctx context.Context, states []domain.MarketState, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE 1=1`
	args := []any{}
	argIdx := 1

	if len(states) > 0 {
		names := make([]string, len(states))
		for i, st := range states {
			names[i] = string(st)
		}
		query += fmt.Sprintf(" AND state = ANY($%d)", argIdx)
		args = append(args, names)
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY scheduled_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	markets, err := scanMarkets(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan markets: %w", err)
	}
	return markets, nil
}

// ListFinalBefore returns settled or cancelled markets resolved before the
// cutoff, oldest first, for archival.
func (s *MarketStore) ListFinalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets
		WHERE state IN ('settled', 'cancelled')
		  AND COALESCE(settled_at, updated_at) < $1
		ORDER BY COALESCE(settled_at, updated_at) ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list final markets: %w", err)
	}
	defer rows.Close()

	markets, err := scanMarkets(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan final markets: %w", err)
	}
	return markets, nil
}

// Delete removes a market record; exposure rows and positions cascade.
func (s *MarketStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM markets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete market %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
