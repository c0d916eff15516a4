// Package admin serves read-only JSON views of the database over HTTP.
package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/maxpert/mylite/engine"
	"github.com/rs/zerolog/log"
)

// Backend is what the admin endpoints read from. *engine.Engine implements it.
type Backend interface {
	DatabaseStats() (tables int, sizeBytes int64, err error)
	Tables(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, table string) (*engine.TableDescription, error)
	InTransaction() bool
}

// AdminHandlers handles admin API endpoints
type AdminHandlers struct {
	backend Backend
	dbName  string
}

// NewAdminHandlers creates a new AdminHandlers instance
func NewAdminHandlers(backend Backend, dbName string) *AdminHandlers {
	return &AdminHandlers{
		backend: backend,
		dbName:  dbName,
	}
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"data": data,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]interface{}{
		"error": message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}
