package admin

import "net/http"

// handleStats returns table count and database size
func (h *AdminHandlers) handleStats(w http.ResponseWriter, r *http.Request) {
	tables, size, err := h.backend.DatabaseStats()
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := map[string]interface{}{
		"database":   h.dbName,
		"tables":     tables,
		"size_bytes": size,
	}

	writeJSONResponse(w, response)
}

// handleHealth reports whether the database answers
func (h *AdminHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.backend.DatabaseStats(); err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSONResponse(w, map[string]interface{}{
		"status":         "ok",
		"in_transaction": h.backend.InTransaction(),
	})
}
