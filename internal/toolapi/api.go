// Package toolapi exposes the action-group tools over HTTP for local
// development: the Lambda envelope on /invoke, plus read-only access to
// the anomaly reference data.
package toolapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/costguard/internal/agentgw"
	"github.com/linnemanlabs/costguard/internal/anomaly"
)

// API holds dependencies for HTTP handlers.
type API struct {
	logger  log.Logger
	handler *agentgw.Handler
	store   anomaly.Store
}

// New creates a new API handler.
func New(logger log.Logger, handler *agentgw.Handler, store anomaly.Store) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if handler == nil {
		panic(xerrors.New("envelope handler is required"))
	}
	if store == nil {
		panic(xerrors.New("anomaly store is required"))
	}
	return &API{
		logger:  logger,
		handler: handler,
		store:   store,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/invoke", a.handleInvoke)
		r.Get("/anomalies", a.handleListAnomalies)
		r.Get("/anomalies/{id}", a.handleGetAnomaly)
	})
}

// handleInvoke accepts the raw action-group envelope and returns the
// response envelope. The boundary never fails, so this is always a 200
// with a JSON body; callers inspect the inner payload for errors, exactly
// as the hosted agent runtime does.
func (a *API) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req agentgw.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("costguard.action_group", req.ActionGroup),
		attribute.String("costguard.function", req.Function),
	)

	resp := a.handler.Invoke(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *API) handleListAnomalies(w http.ResponseWriter, r *http.Request) {
	recs, err := a.store.List(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list anomalies")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"anomalies": recs})
}

func (a *API) handleGetAnomaly(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("costguard.anomaly.id", id))

	rec, ok, err := a.store.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get anomaly", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}
