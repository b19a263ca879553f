package http

import (
	"net/http"
	"strings"

	"github.com/logsphere/logsphere/internal/ingest"
	"github.com/logsphere/logsphere/internal/ledger"
)

// UploadHandler handles POST /v1/files multipart uploads.
type UploadHandler struct {
	ingestor *ingest.Ingestor
	maxBytes int64
}

// NewUploadHandler creates an upload handler. maxBytes bounds the
// request body before validation sees the file size.
func NewUploadHandler(ingestor *ingest.Ingestor, maxBytes int64) *UploadHandler {
	return &UploadHandler{
		ingestor: ingestor,
		maxBytes: maxBytes,
	}
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	// Form overhead on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1024*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required", requestID)
		return
	}
	defer file.Close()

	result, err := h.ingestor.IngestFile(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		writeDomainError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// FilesHandler serves GET /v1/files and GET /v1/files/{id}.
type FilesHandler struct {
	store ledger.Store
}

// NewFilesHandler creates a submissions listing handler.
func NewFilesHandler(store ledger.Store) *FilesHandler {
	return &FilesHandler{store: store}
}

func (h *FilesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	if id := strings.TrimPrefix(r.URL.Path, "/v1/files/"); id != "" && id != r.URL.Path {
		sub, err := h.store.GetSubmission(r.Context(), id)
		if err != nil {
			writeDomainError(w, err, requestID)
			return
		}
		if sub == nil {
			writeError(w, http.StatusNotFound, "submission not found", requestID)
			return
		}
		writeJSON(w, http.StatusOK, sub)
		return
	}

	subs, err := h.store.ListSubmissions(r.Context())
	if err != nil {
		writeDomainError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": subs,
		"count": len(subs),
	})
}
