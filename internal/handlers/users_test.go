package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/agrotrade/chat/internal/models"
)

func getUser(t *testing.T, h *Handler, email string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/users/"+email, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("email", email)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.GetUser(rec, req)
	return rec
}

func TestGetUserByEmail(t *testing.T) {
	h, db := newTestHandler()
	if _, err := db.EnsureUser(context.Background(), "asha", "asha@farm.example", models.RoleSeller); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	rec := getUser(t, h, "asha%40farm.example")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Email != "asha@farm.example" || resp.Name != "asha" || resp.Role != "seller" {
		t.Errorf("response = %+v", resp)
	}
	if resp.ID == "" || resp.JoinedAt == "" {
		t.Errorf("missing id or joined_at: %+v", resp)
	}
}

func TestGetUserNotFound(t *testing.T) {
	h, _ := newTestHandler()

	rec := getUser(t, h, "nobody%40nowhere.example")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
