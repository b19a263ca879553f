package http

import (
	"encoding/json"
	"net/http"

	"github.com/logsphere/logsphere/internal/search"
)

// SearchHandler handles POST /v1/search.
type SearchHandler struct {
	engine *search.Engine
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(engine *search.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", requestID)
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required", requestID)
		return
	}

	result, err := h.engine.Search(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
