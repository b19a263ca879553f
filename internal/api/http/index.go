package http

import (
	"context"
	"net/http"
	"time"

	"github.com/logsphere/logsphere/internal/index"
	"github.com/logsphere/logsphere/internal/ledger"
)

// RebuildHandler handles POST /v1/index/rebuild.
type RebuildHandler struct {
	rebuilder *index.Rebuilder
}

// NewRebuildHandler creates an index rebuild handler.
func NewRebuildHandler(rebuilder *index.Rebuilder) *RebuildHandler {
	return &RebuildHandler{rebuilder: rebuilder}
}

func (h *RebuildHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	// The rebuild outlives the request's own deadline, not its cancel.
	snap, err := h.rebuilder.Rebuild(context.WithoutCancel(r.Context()))
	if err != nil {
		writeDomainError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, indexStatus(snap, nil))
}

// IndexStatusHandler handles GET /v1/index.
type IndexStatusHandler struct {
	rebuilder *index.Rebuilder
	store     ledger.Store
}

// NewIndexStatusHandler creates an index status handler.
func NewIndexStatusHandler(rebuilder *index.Rebuilder, store ledger.Store) *IndexStatusHandler {
	return &IndexStatusHandler{rebuilder: rebuilder, store: store}
}

func (h *IndexStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	meta, err := h.store.LatestIndexMeta(r.Context())
	if err != nil {
		writeDomainError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, indexStatus(h.rebuilder.Current(), meta))
}

// IndexStatus describes the current index generation. LastRecorded
// reflects the ledger's build history and can predate the in-memory
// snapshot after a restart.
type IndexStatus struct {
	Built        bool       `json:"built"`
	BuiltAt      *time.Time `json:"built_at,omitempty"`
	DocCount     int        `json:"doc_count"`
	VocabSize    int        `json:"vocab_size"`
	LastRecorded *time.Time `json:"last_recorded_build,omitempty"`
}

func indexStatus(snap *index.Snapshot, meta *ledger.IndexMeta) IndexStatus {
	status := IndexStatus{}
	if snap != nil {
		builtAt := snap.BuiltAt()
		status.Built = true
		status.BuiltAt = &builtAt
		status.DocCount = snap.NumDocs()
		status.VocabSize = snap.VocabSize()
	}
	if meta != nil {
		status.LastRecorded = &meta.BuiltAt
	}
	return status
}
