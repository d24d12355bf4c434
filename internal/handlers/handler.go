package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agrotrade/chat/internal/relay"
	"github.com/agrotrade/chat/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db    store.DataStore
	redis *store.RedisStore // may be nil; search degrades to empty results
	hub   *relay.Hub
	log   zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(db store.DataStore, redis *store.RedisStore, hub *relay.Hub, log zerolog.Logger) *Handler {
	return &Handler{db: db, redis: redis, hub: hub, log: log}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// localPart derives a display name from an email address, the way the
// marketplace provisions first-contact participants.
func localPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
