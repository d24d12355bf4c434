package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UserResponse represents the participant profile response.
type UserResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

// GetUser handles participant profile lookup by email.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	email := decodeEmailParam(chi.URLParam(r, "email"))

	user, err := h.db.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.JSON(w, http.StatusOK, UserResponse{
		ID:       user.ID.String(),
		Name:     user.Name,
		Email:    user.Email,
		Role:     string(user.Role),
		JoinedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}
