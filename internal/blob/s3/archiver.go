package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wagerhouse/bookd/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only needs the query and prune methods it actually calls, not
// the full domain store interfaces. The Postgres stores satisfy these
// implicitly.
// ---------------------------------------------------------------------------

// MarketArchiveStore provides read and prune access to resolved markets.
type MarketArchiveStore interface {
	// ListFinalBefore returns settled or cancelled markets resolved strictly
	// before the cutoff.
	ListFinalBefore(ctx context.Context, before time.Time, limit int) ([]domain.Market, error)
	// Delete removes one market; dependent rows cascade.
	Delete(ctx context.Context, id string) error
}

// PositionArchiveStore provides read access to a market's positions.
type PositionArchiveStore interface {
	ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Position, error)
}

// AuditArchiveStore provides read and prune access to the audit log.
type AuditArchiveStore interface {
	Log(ctx context.Context, actor, action, entity string, detail map[string]any) error
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.AuditEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// marketExport is one archived market with its complete position journal.
type marketExport struct {
	Market    domain.Market     `json:"market"`
	Positions []domain.Position `json:"positions"`
}

// ArchiveImpl implements domain.Archiver: it exports old resolved markets
// and audit entries to JSONL objects in S3, then prunes the exported rows
// from the primary store. Rows are deleted only after the upload succeeded.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	markets   MarketArchiveStore
	positions PositionArchiveStore
	audit     AuditArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	markets MarketArchiveStore,
	positions PositionArchiveStore,
	audit AuditArchiveStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		markets:   markets,
		positions: positions,
		audit:     audit,
	}
}

// ArchiveMarkets exports every settled or cancelled market resolved before
// the cutoff, together with its position journal, to
// archive/markets/YYYY-MM.jsonl, then deletes the exported markets. The
// archival event is recorded in the audit log and the count of archived
// markets is returned.
func (a *ArchiveImpl) ArchiveMarkets(ctx context.Context, before time.Time) (int64, error) {
	markets, err := a.markets.ListFinalBefore(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets query: %w", err)
	}
	if len(markets) == 0 {
		return 0, nil
	}

	exports := make([]marketExport, 0, len(markets))
	for _, m := range markets {
		positions, err := a.positions.ListByMarket(ctx, m.ID, domain.ListOpts{})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive positions for %s: %w", m.ID, err)
		}
		exports = append(exports, marketExport{Market: m, Positions: positions})
	}

	buf, err := marshalJSONL(exports)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets marshal: %w", err)
	}

	path := archivePath("markets", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive markets upload: %w", err)
	}

	// The upload is durable; pruning the exported rows can now proceed.
	// Positions and exposure rows cascade with the market.
	for _, m := range markets {
		if err := a.markets.Delete(ctx, m.ID); err != nil {
			return 0, fmt.Errorf("s3blob: prune archived market %s: %w", m.ID, err)
		}
	}

	count := int64(len(markets))

	if err := a.audit.Log(ctx, "archiver", "archive.markets", path, map[string]any{
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive markets audit log: %w", err)
	}

	return count, nil
}

// ArchiveAuditLog exports audit entries older than the cutoff to
// archive/audit/YYYY-MM.jsonl and deletes them. The archival event itself is
// logged afterwards, so it carries a post-cutoff timestamp and survives the
// prune.
func (a *ArchiveImpl) ArchiveAuditLog(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	deleted, err := a.audit.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: prune archived audit entries: %w", err)
	}

	if err := a.audit.Log(ctx, "archiver", "archive.audit", path, map[string]any{
		"count":   int64(len(entries)),
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return int64(len(entries)), fmt.Errorf("s3blob: archive audit log: %w", err)
	}

	return int64(len(entries)), nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/markets/2026-08.jsonl
//	archive/audit/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
