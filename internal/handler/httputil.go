package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/logger"
	"github.com/matthewbaird/opcost/internal/source"
	"github.com/matthewbaird/opcost/internal/statement"
	"github.com/matthewbaird/opcost/internal/store"
	"github.com/matthewbaird/opcost/internal/types"
)

// AuditInfo holds audit metadata extracted from request headers.
type AuditInfo struct {
	Actor         string
	CorrelationID string
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Msg("writeJSON encode error")
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

type validationResponse struct {
	Error    string           `json:"error"`
	Code     string           `json:"code"`
	Problems []engine.Problem `json:"problems"`
}

// writeServiceError maps service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var ve *engine.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Error:    "statement request failed validation",
			Code:     "VALIDATION_FAILED",
			Problems: ve.Report(),
		})
	case errors.Is(err, source.ErrNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrExists):
		writeError(w, http.StatusConflict, "ALREADY_EXISTS", err.Error())
	case errors.Is(err, statement.ErrActorRequired):
		writeError(w, http.StatusBadRequest, "MISSING_ACTOR", err.Error())
	default:
		log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// decodeJSON decodes the request body into v. Unknown fields are rejected.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseAuditContext extracts audit metadata from request headers.
func parseAuditContext(w http.ResponseWriter, r *http.Request) (AuditInfo, bool) {
	actor := r.Header.Get("X-Actor")
	if actor == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ACTOR", "X-Actor header is required")
		return AuditInfo{}, false
	}
	return AuditInfo{
		Actor:         actor,
		CorrelationID: r.Header.Get("X-Correlation-ID"),
	}, true
}

// parsePeriodQuery reads the start and end query parameters.
func parsePeriodQuery(w http.ResponseWriter, r *http.Request) (types.Period, bool) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "start and end are required")
		return types.Period{}, false
	}
	p, err := types.ParsePeriod(start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PERIOD", err.Error())
		return types.Period{}, false
	}
	return p, true
}

// parseLimit reads the limit query parameter, returning 0 when absent.
func parseLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
