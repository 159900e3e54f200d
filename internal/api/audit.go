package api

import (
	"net/http"
	"strconv"
	"strings"
)

const maxAuditLimit = 500

func handleQueryAudit(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Audit == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AUDIT_NOT_CONFIGURED", "query audit store is not configured", false, nil)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxAuditLimit {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be an integer between 1 and 500", false, map[string]any{"limit": raw})
			return
		}
		limit = parsed
	}

	entries, err := deps.Audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "AUDIT_ERROR", "failed to read query audit", true, map[string]any{"details": err.Error()})
		return
	}

	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		item := map[string]any{
			"audit_id":    entry.AuditID,
			"trace_id":    entry.Entry.TraceID,
			"table_name":  entry.Entry.Table,
			"sql":         entry.Entry.SQL,
			"param_count": entry.Entry.Params,
			"row_count":   entry.Entry.Rows,
			"duration_ms": entry.Entry.Duration.Milliseconds(),
			"status":      string(entry.Entry.Status),
			"recorded_at": entry.RecordedAt,
		}
		if entry.Entry.Error != "" {
			item["error"] = entry.Entry.Error
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": items})
}
