package admin

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-sql-driver/mysql"
	"github.com/maxpert/mylite/protocol"
)

// handleTables lists user tables
func (h *AdminHandlers) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.backend.Tables(r.Context())
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSONResponse(w, tables)
}

// handleTable returns the columns and indexes of one table as MySQL reports them
func (h *AdminHandlers) handleTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	desc, err := h.backend.Describe(r.Context(), table)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == protocol.ErrCodeNoSuchTable {
			writeErrorResponse(w, http.StatusNotFound, myErr.Message)
			return
		}
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSONResponse(w, map[string]interface{}{
		"name":    desc.Name,
		"columns": desc.Columns.RowMaps(),
		"indexes": desc.Indexes.RowMaps(),
	})
}
