package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/logsphere/logsphere/internal/index"
	"github.com/logsphere/logsphere/internal/ingest"
	"github.com/logsphere/logsphere/internal/insights"
	"github.com/logsphere/logsphere/internal/ledger"
	"github.com/logsphere/logsphere/internal/search"
	"github.com/logsphere/logsphere/internal/storage"
)

// Deps are the wired components the API serves.
type Deps struct {
	Store     ledger.Store
	Ingestor  *ingest.Ingestor
	Archive   storage.ObjectStorage
	Rebuilder *index.Rebuilder
	Searcher  *search.Engine
	Analyzer  *insights.Analyzer
	MaxUpload int64
	Logger    *zap.Logger
}

// NewRouter assembles the API mux with the default middleware chain.
func NewRouter(deps Deps) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/v1/files", &routeByMethod{
		post: NewUploadHandler(deps.Ingestor, deps.MaxUpload),
		get:  NewFilesHandler(deps.Store),
	})
	mux.Handle("/v1/files/", NewFilesHandler(deps.Store))
	mux.Handle("/v1/import", NewImportHandler(deps.Ingestor, deps.Archive))
	mux.Handle("/v1/events", NewEventsHandler(deps.Store))
	mux.Handle("/v1/search", NewSearchHandler(deps.Searcher))
	mux.Handle("/v1/index", NewIndexStatusHandler(deps.Rebuilder, deps.Store))
	mux.Handle("/v1/index/rebuild", NewRebuildHandler(deps.Rebuilder))
	mux.Handle("/v1/insights", NewInsightsHandler(deps.Analyzer))
	mux.Handle("/v1/dashboard", NewDashboardHandler(deps.Analyzer))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return DefaultMiddleware(deps.Logger)(mux)
}

// routeByMethod dispatches GET and POST on the same path to different
// handlers.
type routeByMethod struct {
	get  http.Handler
	post http.Handler
}

func (rt *routeByMethod) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if rt.get != nil {
			rt.get.ServeHTTP(w, r)
			return
		}
	case http.MethodPost:
		if rt.post != nil {
			rt.post.ServeHTTP(w, r)
			return
		}
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed", GetRequestID(r.Context()))
}
