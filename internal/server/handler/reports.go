package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wagerhouse/bookd/internal/domain"
)

// ReportStore defines the blob access the reports handler needs.
type ReportStore interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]domain.BlobInfo, error)
}

// ReportsHandler serves archived settlement reports out of object storage.
type ReportsHandler struct {
	store  ReportStore
	logger *slog.Logger
}

// NewReportsHandler creates a ReportsHandler.
func NewReportsHandler(store ReportStore, logger *slog.Logger) *ReportsHandler {
	return &ReportsHandler{
		store:  store,
		logger: logger,
	}
}

type listReportsResponse struct {
	Reports []domain.BlobInfo `json:"reports"`
}

// ListReports lists stored report objects under a prefix.
// GET /api/reports?prefix=settlements/2026-01
func (h *ReportsHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "settlements/"
	}

	infos, err := h.store.List(r.Context(), prefix)
	if err != nil {
		respondError(w, r, h.logger, "list reports", err)
		return
	}

	writeJSON(w, http.StatusOK, listReportsResponse{Reports: infos})
}

// GetReport streams one stored report object.
// GET /api/reports/{path...}
func (h *ReportsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r, "path")
	if path == "" || strings.Contains(path, "..") {
		writeError(w, http.StatusBadRequest, "missing or malformed report path")
		return
	}

	body, err := h.store.Get(r.Context(), path)
	if err != nil {
		respondError(w, r, h.logger, "get report", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: stream report failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
