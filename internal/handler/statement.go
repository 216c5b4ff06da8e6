package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/matthewbaird/opcost/internal/activity"
	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/logger"
	"github.com/matthewbaird/opcost/internal/occupancy"
	"github.com/matthewbaird/opcost/internal/settlement"
	"github.com/matthewbaird/opcost/internal/statement"
	"github.com/matthewbaird/opcost/internal/types"
)

// StatementHandler implements the HTTP surface of the statement service.
type StatementHandler struct {
	svc *statement.Service
	log zerolog.Logger
}

// NewStatementHandler creates a new StatementHandler.
func NewStatementHandler(svc *statement.Service, log zerolog.Logger) *StatementHandler {
	return &StatementHandler{svc: svc, log: log.With().Str("component", "http").Logger()}
}

// Routes registers the handler on r.
func (h *StatementHandler) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Route("/buildings/{buildingID}", func(r chi.Router) {
			r.Get("/occupancy", h.Occupancy)
			r.Get("/activity", h.Activity)
			r.Post("/statements/preview", h.Preview)
			r.Post("/statements", h.Finalize)
			r.Get("/statements", h.ListStatements)
			r.Get("/statements/live", NewLiveHandler(h.svc, h.log).ServeHTTP)
			r.Put("/drafts/{draftID}", h.SaveDraft)
		})
		r.Get("/statements/{statementID}", h.GetStatement)
		r.Get("/drafts/{draftID}", h.GetDraft)
	})
}

func (h *StatementHandler) requestLog(r *http.Request) zerolog.Logger {
	return logger.WithCorrelationID(h.log, r.Header.Get("X-Correlation-ID"))
}

// Occupancy returns the occupancy intervals of a building.
// GET /v1/buildings/{buildingID}/occupancy?start=&end=[&unit_id=]
func (h *StatementHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriodQuery(w, r)
	if !ok {
		return
	}
	ivs, err := h.svc.Occupancy(r.Context(), chi.URLParam(r, "buildingID"), period, r.URL.Query()["unit_id"])
	if err != nil {
		writeServiceError(w, h.requestLog(r), err)
		return
	}
	if ivs == nil {
		ivs = []occupancy.Interval{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period":    period,
		"intervals": ivs,
	})
}

// Preview computes a statement without persisting it.
// POST /v1/buildings/{buildingID}/statements/preview
func (h *StatementHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	res, err := h.svc.Preview(r.Context(), chi.URLParam(r, "buildingID"), req)
	if err != nil {
		writeServiceError(w, h.requestLog(r), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Finalize computes and persists a Completed statement.
// POST /v1/buildings/{buildingID}/statements
func (h *StatementHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req engine.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	res, err := h.svc.Finalize(r.Context(), chi.URLParam(r, "buildingID"), req, audit.Actor)
	if err != nil {
		writeServiceError(w, h.requestLog(r), err)
		return
	}
	writeJSON(w, http.StatusCreated, res.Statement)
}

// ListStatements lists the persisted statements of a building.
// GET /v1/buildings/{buildingID}/statements[?limit=]
func (h *StatementHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListStatements(r.Context(), chi.URLParam(r, "buildingID"), parseLimit(r))
	if err != nil {
		writeServiceError(w, h.requestLog(r), err)
		return
	}
	if list == nil {
		list = []settlement.Statement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"statements": list})
}

// GetStatement returns a statement with its items.
// GET /v1/statements/{statementID}
func (h *StatementHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	stmt, err := h.svc.GetStatement(r.Context(), chi.URLParam(r, "statementID"))
	if err != nil {
		writeServiceError(w, h.requestLog(r), err)
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}

// SaveDraft stores the request body as a draft.
// PUT /v1/buildings/{buildingID}/drafts/{draftID}
func (h *StatementHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req engine.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	d, err := h.svc.SaveDraft(r.Context(), chi.URLParam(r, "buildingID"), chi.URLParam(r, "draftID"), req, audit.Actor)
	if err != nil {
		writeServiceError(w, h.requestLog(r), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GetDraft returns a draft.
// GET /v1/drafts/{draftID}
func (h *StatementHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetDraft(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		writeServiceError(w, h.requestLog(r), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Activity returns the event history of a building, newest first.
// GET /v1/buildings/{buildingID}/activity[?since=&until=&event_types=&limit=&cursor=]
func (h *StatementHandler) Activity(w http.ResponseWriter, r *http.Request) {
	opts := activity.DefaultQueryOptions()
	q := r.URL.Query()
	if s := q.Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			opts.Since = &t
		}
	}
	if u := q.Get("until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			opts.Until = &t
		}
	}
	if et := q.Get("event_types"); et != "" {
		opts.EventTypes = strings.Split(et, ",")
	}
	if n := parseLimit(r); n > 0 {
		opts.Limit = n
	}
	opts.Cursor = q.Get("cursor")

	entries, next, err := h.svc.Activity(r.Context(), chi.URLParam(r, "buildingID"), opts)
	if err != nil {
		writeServiceError(w, h.requestLog(r), err)
		return
	}
	if entries == nil {
		entries = []types.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, struct {
		Activities []types.ActivityEntry `json:"activities"`
		NextCursor string                `json:"next_cursor,omitempty"`
	}{entries, next})
}
