package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	lserrors "github.com/logsphere/logsphere/internal/errors"
	"github.com/logsphere/logsphere/internal/ledger"
	"github.com/logsphere/logsphere/pkg/types"
)

// EventsHandler handles GET /v1/events with filter query parameters.
type EventsHandler struct {
	store ledger.Store
}

// NewEventsHandler creates an events listing handler.
func NewEventsHandler(store ledger.Store) *EventsHandler {
	return &EventsHandler{store: store}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	filter, err := parseEventFilter(r)
	if err != nil {
		writeDomainError(w, err, requestID)
		return
	}

	events, err := h.store.QueryEvents(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func parseEventFilter(r *http.Request) (types.EventFilter, error) {
	q := r.URL.Query()
	filter := types.EventFilter{
		Level:        types.Level(strings.ToUpper(q.Get("level"))),
		Service:      q.Get("service"),
		SubmissionID: q.Get("submission_id"),
	}

	if v := q.Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, invalidParam("from", "must be an RFC 3339 timestamp")
		}
		filter.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, invalidParam("to", "must be an RFC 3339 timestamp")
		}
		filter.To = to
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, invalidParam("limit", "must be an integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}

func invalidParam(param, reason string) error {
	return lserrors.NewQueryError(lserrors.CodeInvalidQuery, param+" "+reason).
		WithDetails(map[string]interface{}{"param": param})
}
