package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/logsphere/logsphere/internal/ingest"
	"github.com/logsphere/logsphere/internal/storage"
)

// ImportRequest names a file to ingest without an upload: either a path
// on the server's filesystem or an object in the raw archive store.
type ImportRequest struct {
	Path   string `json:"path,omitempty"`
	Object string `json:"object,omitempty"`
}

// ImportHandler handles POST /v1/import.
type ImportHandler struct {
	ingestor *ingest.Ingestor
	archive  storage.ObjectStorage
}

// NewImportHandler creates an import handler. archive may be nil when no
// object store is configured; object imports then fail cleanly.
func NewImportHandler(ingestor *ingest.Ingestor, archive storage.ObjectStorage) *ImportHandler {
	return &ImportHandler{
		ingestor: ingestor,
		archive:  archive,
	}
}

func (h *ImportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", requestID)
		return
	}

	switch {
	case req.Path != "" && req.Object != "":
		writeError(w, http.StatusBadRequest, "path and object are mutually exclusive", requestID)
	case req.Path != "":
		h.importPath(w, r, req.Path, requestID)
	case req.Object != "":
		h.importObject(w, r, req.Object, requestID)
	default:
		writeError(w, http.StatusBadRequest, "path or object is required", requestID)
	}
}

func (h *ImportHandler) importPath(w http.ResponseWriter, r *http.Request, path, requestID string) {
	result, err := h.ingestor.IngestLocalFile(r.Context(), path)
	if err != nil {
		writeDomainError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// importObject downloads one archive object to a temp file and runs it
// through the same pipeline as an upload.
func (h *ImportHandler) importObject(w http.ResponseWriter, r *http.Request, object, requestID string) {
	if h.archive == nil {
		writeError(w, http.StatusBadRequest, "no archive storage configured", requestID)
		return
	}

	dir, err := os.MkdirTemp("", "logsphere_import_*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stage import", requestID)
		return
	}
	defer os.RemoveAll(dir)

	// Keep the object's base name so extension validation still applies.
	local := filepath.Join(dir, filepath.Base(object))
	if err := h.archive.Download(r.Context(), object, local); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "object not found", requestID)
			return
		}
		writeError(w, http.StatusBadGateway, "failed to download object", requestID)
		return
	}

	result, err := h.ingestor.IngestLocalFile(r.Context(), local)
	if err != nil {
		writeDomainError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
