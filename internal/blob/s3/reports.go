package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wagerhouse/bookd/internal/domain"
)

// ReportWriter uploads per-market settlement reports.
type ReportWriter struct {
	writer domain.BlobWriter
}

// NewReportWriter creates a ReportWriter on top of the given blob writer.
func NewReportWriter(writer domain.BlobWriter) *ReportWriter {
	return &ReportWriter{writer: writer}
}

// WriteSettlement uploads one settlement report as JSONL: the first line is
// the summary, each following line is one position. It returns the object
// path.
func (rw *ReportWriter) WriteSettlement(ctx context.Context, rep domain.SettlementReport) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	head := rep
	head.Positions = nil
	if err := enc.Encode(head); err != nil {
		return "", fmt.Errorf("s3blob: encode report summary %s: %w", rep.MarketID, err)
	}
	for i, p := range rep.Positions {
		if err := enc.Encode(p); err != nil {
			return "", fmt.Errorf("s3blob: encode report position %d for %s: %w", i, rep.MarketID, err)
		}
	}

	path := reportPath(rep.MarketID, rep.SettledAt)
	if err := rw.writer.Put(ctx, path, bytes.NewReader(buf.Bytes()), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: upload report %s: %w", rep.MarketID, err)
	}
	return path, nil
}

// reportPath builds the S3 key for a settlement report, partitioned by the
// year-month of resolution.
//
//	settlements/2026-08/3f2a9c.jsonl
func reportPath(marketID string, at time.Time) string {
	return fmt.Sprintf("settlements/%s/%s.jsonl", at.Format("2006-01"), marketID)
}
