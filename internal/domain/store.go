package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market records.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	Update(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, states []MarketState, opts ListOpts) ([]Market, error)
	ListFinalBefore(ctx context.Context, cutoff time.Time, limit int) ([]Market, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// PositionStore journals accepted bets and their settlement outcomes.
type PositionStore interface {
	Insert(ctx context.Context, p Position) error
	SettleBatch(ctx context.Context, marketID string, positions []Position) error
	GetByID(ctx context.Context, marketID string, id uint64) (Position, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Position, error)
	ListByBettor(ctx context.Context, bettor common.Address, opts ListOpts) ([]Position, error)
	DeleteByMarket(ctx context.Context, marketID string) (int64, error)
}

// LimitStore persists the eight exposure rows per market.
type LimitStore interface {
	UpsertRows(ctx context.Context, marketID string, rows map[ExposureSlot]LimitRow) error
	Get(ctx context.Context, marketID string) (ExposureSnapshot, error)
	DeleteByMarket(ctx context.Context, marketID string) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, actor, action, entity string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
