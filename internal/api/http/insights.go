package http

import (
	"net/http"
	"time"

	"github.com/logsphere/logsphere/internal/insights"
)

// InsightsHandler handles GET /v1/insights, optionally windowed with
// from/to RFC3339 query parameters.
type InsightsHandler struct {
	analyzer *insights.Analyzer
}

// NewInsightsHandler creates an insights handler.
func NewInsightsHandler(analyzer *insights.Analyzer) *InsightsHandler {
	return &InsightsHandler{analyzer: analyzer}
}

func (h *InsightsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	report, err := h.analyzer.Analyze(r.Context(), window)
	if err != nil {
		writeDomainError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func parseWindow(r *http.Request) (*insights.Window, error) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr == "" && toStr == "" {
		return nil, nil
	}

	window := &insights.Window{
		From: time.Time{},
		To:   time.Now().UTC(),
	}
	if fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return nil, err
		}
		window.From = from
	}
	if toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return nil, err
		}
		window.To = to
	}
	return window, nil
}

// DashboardHandler handles GET /v1/dashboard.
type DashboardHandler struct {
	analyzer *insights.Analyzer
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(analyzer *insights.Analyzer) *DashboardHandler {
	return &DashboardHandler{analyzer: analyzer}
}

func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	dash, err := h.analyzer.Dashboard(r.Context())
	if err != nil {
		writeDomainError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, dash)
}
