package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves old data from the database to cold storage.
type Archiver interface {
	ArchiveMarkets(ctx context.Context, before time.Time) (int64, error)
	ArchiveAuditLog(ctx context.Context, before time.Time) (int64, error)
}

// SettlementReport is the archived record of one settlement or
// cancellation.
type SettlementReport struct {
	MarketID   string      `json:"market_id"`
	HomeTeam   string      `json:"home_team"`
	AwayTeam   string      `json:"away_team"`
	State      MarketState `json:"state"`
	HomeScore  *int64      `json:"home_score,omitempty"`
	AwayScore  *int64      `json:"away_score,omitempty"`
	PushPolicy PushPolicy  `json:"push_policy"`
	Positions  []Position  `json:"positions"`
	PaidOut    int64       `json:"paid_out"`
	Refunded   int64       `json:"refunded"`
	Residual   int64       `json:"residual"`
	SettledAt  time.Time   `json:"settled_at"`
}
