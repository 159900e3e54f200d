package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/insightsflow/insightsflow/internal/query"
)

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Service == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query service is not configured", false, nil)
		return
	}
	tables, err := deps.Service.ListTables(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "WAREHOUSE_UNAVAILABLE", "failed to list tables", true, map[string]any{"details": err.Error()})
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dataset": deps.Service.Dataset(),
		"tables":  tables,
	})
}

func handleGetSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Service == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query service is not configured", false, nil)
		return
	}
	tableName := strings.TrimSpace(r.PathValue("name"))
	if tableName == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_REQUIRED", "table path parameter is required", false, nil)
		return
	}

	schema, err := deps.Service.Schema(r.Context(), tableName)
	if err != nil {
		switch {
		case errors.Is(err, query.ErrNotAllowed):
			writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_ALLOWED", err.Error(), false, map[string]any{"table": tableName})
		case errors.Is(err, query.ErrWarehouseUnavailable):
			writeError(r.Context(), w, http.StatusInternalServerError, "WAREHOUSE_UNAVAILABLE", "failed to resolve allowed tables", true, map[string]any{"details": err.Error()})
		default:
			writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_UNAVAILABLE", "failed to fetch table schema", true, map[string]any{"details": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":  tableName,
		"schema": schema,
	})
}
