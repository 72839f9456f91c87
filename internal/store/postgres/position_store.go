package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wagerhouse/bookd/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionCols = `market_id, position_id, bettor, kind, side,
	stake, odds, line, winnings, settled, won, placed_at, settled_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var bettor, kind, side string

	err := row.Scan(
		&p.MarketID, &p.ID, &bettor, &kind, &side,
		&p.Stake, &p.Odds, &p.Line, &p.Winnings,
		&p.Settled, &p.Won, &p.PlacedAt, &p.SettledAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Bettor = common.HexToAddress(bettor)
	p.Kind = domain.BetKind(kind)
	p.Side = domain.Side(side)
	return p, nil
}

func scanPositions(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Insert journals a newly accepted position.
func (s *PositionStore) Insert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			market_id, position_id, bettor, kind, side,
			stake, odds, line, winnings, settled, won, placed_at, settled_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11, $12, $13
		)`

	_, err := s.pool.Exec(ctx, query,
		p.MarketID, p.ID, p.Bettor.Hex(), string(p.Kind), string(p.Side),
		p.Stake, p.Odds, p.Line, p.Winnings,
		p.Settled, p.Won, p.PlacedAt, p.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert position %s/%d: %w", p.MarketID, p.ID, err)
	}
	return nil
}

// SettleBatch writes settlement marks for a market's positions in a single
// batch round trip.
func (s *PositionStore) SettleBatch(ctx context.Context, marketID string, positions []domain.Position) error {
	if len(positions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		UPDATE positions SET
			settled    = $3,
			won        = $4,
			settled_at = $5
		WHERE market_id = $1 AND position_id = $2`

	for _, p := range positions {
		batch.Queue(query, marketID, p.ID, p.Settled, p.Won, p.SettledAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range positions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: settle position batch item %d: %w", i, err)
		}
	}
	return nil
}

// GetByID retrieves a single position by market and position ID.
func (s *PositionStore) GetByID(ctx context.Context, marketID string, id uint64) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionCols+` FROM positions
		 WHERE market_id = $1 AND position_id = $2`, marketID, id)

	p, err := scanPosition(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%d: %w", marketID, id, err)
	}
	return p, nil
}

// ListByMarket returns a market's positions in journal order.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionCols + ` FROM positions WHERE market_id = $1`
	args := []any{marketID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND placed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND placed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY position_id ASC"

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
		return nil, fmt.Errorf("postgres: list positions for %s: %w", marketID, err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions for %s: %w", marketID, err)
	}
	return positions, nil
}

// ListByBettor returns a bettor's positions across markets, newest first.
func (s *PositionStore) ListByBettor(ctx context.Context, bettor common.Address, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionCols + ` FROM positions WHERE bettor = $1`
	args := []any{bettor.Hex()}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND placed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND placed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY placed_at DESC"

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
		return nil, fmt.Errorf("postgres: list positions for bettor %s: %w", bettor.Hex(), err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions for bettor %s: %w", bettor.Hex(), err)
	}
	return positions, nil
}

// DeleteByMarket removes a market's positions and reports how many rows went.
func (s *PositionStore) DeleteByMarket(ctx context.Context, marketID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE market_id = $1`, marketID)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete positions for %s: %w", marketID, err)
	}
	return tag.RowsAffected(), nil
}
