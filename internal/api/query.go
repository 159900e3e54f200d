package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/insightsflow/insightsflow/internal/query"
)

type queryDataResponse struct {
	Data     []query.Row    `json:"data"`
	Warnings []string       `json:"warnings"`
	Stats    map[string]any `json:"stats"`
}

const maxQueryBodyBytes = 1 << 20

func handleQueryData(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Service == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query service is not configured", false, nil)
		return
	}

	var request query.ReadRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Service.Query(r.Context(), request)
	if err != nil {
		writeQueryError(w, r, request, err)
		return
	}

	rows := result.Rows
	if rows == nil {
		rows = []query.Row{}
	}
	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, queryDataResponse{
		Data:     rows,
		Warnings: warnings,
		Stats: map[string]any{
			"rows":        len(rows),
			"fields":      result.Fields,
			"duration_ms": result.Duration.Milliseconds(),
		},
	})
}

func writeQueryError(w http.ResponseWriter, r *http.Request, request query.ReadRequest, err error) {
	ctx := r.Context()
	var unknown *query.UnknownColumnError
	switch {
	case errors.Is(err, query.ErrNotAllowed):
		writeError(ctx, w, http.StatusBadRequest, "TABLE_NOT_ALLOWED", err.Error(), false, map[string]any{"table": request.Table})
	case errors.As(err, &unknown):
		writeError(ctx, w, http.StatusBadRequest, "UNKNOWN_COLUMN", err.Error(), false, map[string]any{
			"table":     unknown.Table,
			"field":     unknown.Field,
			"column":    unknown.Column,
			"available": unknown.Available,
		})
	case errors.Is(err, query.ErrEmptyProjection):
		writeError(ctx, w, http.StatusBadRequest, "EMPTY_PROJECTION", err.Error(), false, nil)
	case errors.Is(err, query.ErrUnsupportedAggregation):
		writeError(ctx, w, http.StatusBadRequest, "UNSUPPORTED_AGGREGATION", err.Error(), false, nil)
	case errors.Is(err, query.ErrDuplicateField):
		writeError(ctx, w, http.StatusBadRequest, "DUPLICATE_FIELD", err.Error(), false, nil)
	case errors.Is(err, query.ErrMalformedOrderBy):
		writeError(ctx, w, http.StatusBadRequest, "MALFORMED_ORDER_BY", err.Error(), false, nil)
	case errors.Is(err, query.ErrInvalidLimit):
		writeError(ctx, w, http.StatusBadRequest, "INVALID_LIMIT", err.Error(), false, nil)
	case errors.Is(err, query.ErrWarehouseUnavailable):
		writeError(ctx, w, http.StatusInternalServerError, "WAREHOUSE_UNAVAILABLE", "failed to resolve allowed tables", true, map[string]any{"details": err.Error()})
	case errors.Is(err, query.ErrSchemaUnavailable):
		writeError(ctx, w, http.StatusInternalServerError, "SCHEMA_UNAVAILABLE", "failed to fetch table schema", true, map[string]any{"details": err.Error()})
	default:
		writeError(ctx, w, http.StatusInternalServerError, "EXECUTION_FAILED", "query execution failed", true, map[string]any{"details": err.Error()})
	}
}
