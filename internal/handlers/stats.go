package handlers

import (
	"fmt"
	"net/http"
	"time"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalUsers      int64  `json:"total_users"`
	TotalMessages   int64  `json:"total_messages"`
	LastActivity    string `json:"last_activity"`
	OpenConnections int    `json:"open_connections"`
	ActiveRooms     int    `json:"active_rooms"`
}

// Stats returns chat platform statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, err := h.db.CountUsers(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count users")
		return
	}

	totalMessages, err := h.db.CountMessages(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	lastAt, err := h.db.LastMessageAt(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to get last activity")
		return
	}

	lastActivity := "no activity yet"
	if lastAt != nil {
		lastActivity = formatTimeAgo(*lastAt)
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalUsers:      totalUsers,
		TotalMessages:   totalMessages,
		LastActivity:    lastActivity,
		OpenConnections: h.hub.ConnectionCount(),
		ActiveRooms:     h.hub.RoomCount(),
	})
}

// formatTimeAgo renders a timestamp as a coarse human-readable age.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
