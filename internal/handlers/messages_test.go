package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agrotrade/chat/internal/relay"
	"github.com/agrotrade/chat/internal/store"
)

func newTestHandler() (*Handler, *store.MemoryStore) {
	db := store.NewMemoryStore()
	hub := relay.NewHub(zerolog.Nop())
	return NewHandler(db, nil, hub, zerolog.Nop()), db
}

func appendMessage(t *testing.T, h *Handler, body AppendMessageRequest) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", "/api/messages", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.AppendMessage(rec, req)
	return rec
}

func listMessages(t *testing.T, h *Handler, roomID string) []MessageResponse {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/messages?roomId="+roomID, nil)
	rec := httptest.NewRecorder()
	h.ListMessages(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var msgs []MessageResponse
	if err := json.NewDecoder(rec.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	return msgs
}

func TestAppendThenListRoundTrip(t *testing.T) {
	h, _ := newTestHandler()

	// Token as a browser client produces it: segments percent-encoded.
	roomID := "prod123--buyer%40x.com--seller%40y.com"

	rec := appendMessage(t, h, AppendMessageRequest{
		RoomID:  roomID,
		Sender:  "buyer@x.com",
		Content: "hello",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("append status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var created MessageResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode append response: %v", err)
	}
	if created.ID == "" {
		t.Error("created message has no id")
	}
	if created.Product != "prod123" {
		t.Errorf("product = %q, want prod123", created.Product)
	}
	if created.Sender.Email != "buyer@x.com" || created.Sender.Role != "buyer" {
		t.Errorf("sender = %+v, want buyer@x.com with role buyer", created.Sender)
	}
	if created.Receiver.Email != "seller@y.com" || created.Receiver.Role != "seller" {
		t.Errorf("receiver = %+v, want seller@y.com with role seller", created.Receiver)
	}
	if created.Sender.Name != "buyer" {
		t.Errorf("sender name = %q, want local part of email", created.Sender.Name)
	}

	msgs := listMessages(t, h, roomID)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != created.ID || msgs[0].Content != "hello" {
		t.Errorf("listed message = %+v, want the appended one", msgs[0])
	}
}

func TestListOrderIsStableOnEqualTimestamps(t *testing.T) {
	h, _ := newTestHandler()

	roomID := "tomatoes--b%40x.com--s%40y.com"
	at := time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)

	for i := 0; i < 5; i++ {
		rec := appendMessage(t, h, AppendMessageRequest{
			RoomID:    roomID,
			Sender:    "b@x.com",
			Content:   fmt.Sprintf("msg-%d", i),
			CreatedAt: at,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("append %d status = %d", i, rec.Code)
		}
	}

	msgs := listMessages(t, h, roomID)
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	for i, m := range msgs {
		want := fmt.Sprintf("msg-%d", i)
		if m.Content != want {
			t.Errorf("position %d: content = %q, want %q", i, m.Content, want)
		}
	}
}

func TestAppendRejectsMalformedToken(t *testing.T) {
	h, _ := newTestHandler()

	for _, roomID := range []string{"", "noseparators", "one--two", "a--b--c--d", "--b%40x.com--s%40y.com"} {
		rec := appendMessage(t, h, AppendMessageRequest{
			RoomID:  roomID,
			Sender:  "b@x.com",
			Content: "hi",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("roomId %q: status = %d, want 400", roomID, rec.Code)
		}
	}
}

func TestListSoftFailsOnBadToken(t *testing.T) {
	h, _ := newTestHandler()

	// Missing, malformed, and never-seen room tokens all read as an empty
	// conversation.
	for _, roomID := range []string{"", "garbage", "prod--unknown%40x.com--ghost%40y.com"} {
		msgs := listMessages(t, h, roomID)
		if len(msgs) != 0 {
			t.Errorf("roomId %q: got %d messages, want 0", roomID, len(msgs))
		}
	}
}

func TestAppendValidatesContent(t *testing.T) {
	h, _ := newTestHandler()
	roomID := "p--b%40x.com--s%40y.com"

	rec := appendMessage(t, h, AppendMessageRequest{RoomID: roomID, Sender: "b@x.com"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty content: status = %d, want 400", rec.Code)
	}

	rec = appendMessage(t, h, AppendMessageRequest{
		RoomID:  roomID,
		Sender:  "b@x.com",
		Content: strings.Repeat("x", maxContentBytes+1),
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("oversized content: status = %d, want 422", rec.Code)
	}
}

func TestAppendRejectsNonParticipantSender(t *testing.T) {
	h, db := newTestHandler()

	rec := appendMessage(t, h, AppendMessageRequest{
		RoomID:  "p--b%40x.com--s%40y.com",
		Sender:  "stranger@z.com",
		Content: "let me in",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	if n, _ := db.CountMessages(context.Background()); n != 0 {
		t.Errorf("stored %d messages, want 0", n)
	}
	if n, _ := db.CountUsers(context.Background()); n != 0 {
		t.Errorf("provisioned %d users, want 0", n)
	}
}

func TestAppendRejectsBadTimestamp(t *testing.T) {
	h, _ := newTestHandler()

	rec := appendMessage(t, h, AppendMessageRequest{
		RoomID:    "p--b%40x.com--s%40y.com",
		Sender:    "b@x.com",
		Content:   "hi",
		CreatedAt: "yesterday at noon",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAppendHonorsClientTimestamp(t *testing.T) {
	h, _ := newTestHandler()

	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	rec := appendMessage(t, h, AppendMessageRequest{
		RoomID:    "p--b%40x.com--s%40y.com",
		Sender:    "b@x.com",
		Content:   "hi",
		CreatedAt: at.Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var created MessageResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !created.CreatedAt.Equal(at) {
		t.Errorf("createdAt = %v, want %v", created.CreatedAt, at)
	}
}

func TestAppendProvisionsEachParticipantOnce(t *testing.T) {
	h, db := newTestHandler()
	roomID := "p--b%40x.com--s%40y.com"

	for i := 0; i < 3; i++ {
		rec := appendMessage(t, h, AppendMessageRequest{
			RoomID:  roomID,
			Sender:  "b@x.com",
			Content: "hi again",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("append %d status = %d", i, rec.Code)
		}
	}

	if n, _ := db.CountUsers(context.Background()); n != 2 {
		t.Errorf("user count = %d, want 2", n)
	}
}

func TestConcurrentAppendsProvisionSingleRow(t *testing.T) {
	h, db := newTestHandler()
	roomID := "p--race%40x.com--s%40y.com"

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			appendMessage(t, h, AppendMessageRequest{
				RoomID:  roomID,
				Sender:  "race@x.com",
				Content: "first contact",
			})
		}()
	}
	wg.Wait()

	if n, _ := db.CountUsers(context.Background()); n != 2 {
		t.Errorf("user count = %d, want 2", n)
	}
	if n, _ := db.CountMessages(context.Background()); n != 10 {
		t.Errorf("message count = %d, want 10", n)
	}
}

func TestSellerRepliesLandInSameRoom(t *testing.T) {
	h, _ := newTestHandler()
	roomID := "mango--b%40x.com--s%40y.com"

	if rec := appendMessage(t, h, AppendMessageRequest{RoomID: roomID, Sender: "b@x.com", Content: "is this fresh?"}); rec.Code != http.StatusCreated {
		t.Fatalf("buyer append status = %d", rec.Code)
	}
	if rec := appendMessage(t, h, AppendMessageRequest{RoomID: roomID, Sender: "s@y.com", Content: "picked today"}); rec.Code != http.StatusCreated {
		t.Fatalf("seller append status = %d", rec.Code)
	}

	msgs := listMessages(t, h, roomID)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Sender.Email != "b@x.com" || msgs[1].Sender.Email != "s@y.com" {
		t.Errorf("conversation order wrong: %q then %q", msgs[0].Sender.Email, msgs[1].Sender.Email)
	}
	if msgs[1].Sender.Role != "seller" {
		t.Errorf("reply sender role = %q, want seller", msgs[1].Sender.Role)
	}
}

func TestAppendRejectsInvalidJSON(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest("POST", "/api/messages", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.AppendMessage(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
