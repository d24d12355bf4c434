package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/agrotrade/chat/internal/models"
)

func fetchChats(t *testing.T, h *Handler, path string) []models.Conversation {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	switch {
	case req.URL.Path == "/api/chats/buyer":
		h.BuyerChats(rec, req)
	default:
		h.SellerChats(rec, req)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var chats []models.Conversation
	if err := json.NewDecoder(rec.Body).Decode(&chats); err != nil {
		t.Fatalf("decode chats: %v", err)
	}
	return chats
}

func TestBuyerChatsGroupsByProductAndSeller(t *testing.T) {
	h, _ := newTestHandler()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	send := func(roomID, sender, content string, at time.Time) {
		rec := appendMessage(t, h, AppendMessageRequest{
			RoomID:    roomID,
			Sender:    sender,
			Content:   content,
			CreatedAt: at.Format(time.RFC3339),
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("append status = %d: %s", rec.Code, rec.Body.String())
		}
	}

	// Two messages to the same seller about the same product collapse into
	// one conversation carrying the latest message.
	send("rice--b%40x.com--s1%40y.com", "b@x.com", "old", base)
	send("rice--b%40x.com--s1%40y.com", "b@x.com", "latest", base.Add(time.Hour))
	// A different product with the same seller is its own conversation.
	send("wheat--b%40x.com--s1%40y.com", "b@x.com", "wheat?", base.Add(2*time.Hour))
	// And so is a different seller.
	send("rice--b%40x.com--s2%40z.com", "b@x.com", "other seller", base.Add(30*time.Minute))

	chats := fetchChats(t, h, "/api/chats/buyer?buyerEmail="+url.QueryEscape("b@x.com"))
	if len(chats) != 3 {
		t.Fatalf("got %d conversations, want 3", len(chats))
	}

	// Newest first.
	if chats[0].Product != "wheat" {
		t.Errorf("first conversation product = %q, want wheat", chats[0].Product)
	}
	for _, c := range chats {
		if c.Product == "rice" && c.CounterpartEmail == "s1@y.com" {
			if c.LastMessage != "latest" {
				t.Errorf("rice/s1 last message = %q, want latest", c.LastMessage)
			}
		}
	}
}

func TestBuyerChatsRoomTokenRoundTrips(t *testing.T) {
	h, _ := newTestHandler()

	rec := appendMessage(t, h, AppendMessageRequest{
		RoomID:  "corn--b%40x.com--s%40y.com",
		Sender:  "b@x.com",
		Content: "price?",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("append status = %d", rec.Code)
	}

	chats := fetchChats(t, h, "/api/chats/buyer?buyerEmail="+url.QueryEscape("b@x.com"))
	if len(chats) != 1 {
		t.Fatalf("got %d conversations, want 1", len(chats))
	}

	// The conversation's room token must open the same history.
	msgs := listMessages(t, h, url.QueryEscape(chats[0].RoomID))
	if len(msgs) != 1 || msgs[0].Content != "price?" {
		t.Errorf("room token %q did not resolve the conversation", chats[0].RoomID)
	}
}

func TestSellerChatsIncludeUnansweredBuyers(t *testing.T) {
	h, _ := newTestHandler()

	rec := appendMessage(t, h, AppendMessageRequest{
		RoomID:  "okra--b%40x.com--s%40y.com",
		Sender:  "b@x.com",
		Content: "hello seller",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("append status = %d", rec.Code)
	}

	// The seller never replied but still sees the conversation.
	chats := fetchChats(t, h, "/api/chats/seller?sellerEmail="+url.QueryEscape("s@y.com"))
	if len(chats) != 1 {
		t.Fatalf("got %d conversations, want 1", len(chats))
	}
	if chats[0].CounterpartEmail != "b@x.com" {
		t.Errorf("counterpart = %q, want b@x.com", chats[0].CounterpartEmail)
	}
	if chats[0].LastMessage != "hello seller" {
		t.Errorf("last message = %q, want the buyer's opener", chats[0].LastMessage)
	}
}

func TestSellerChatsCounterpartIsAlwaysTheBuyer(t *testing.T) {
	h, _ := newTestHandler()

	roomID := "okra--b%40x.com--s%40y.com"
	for _, m := range []struct{ sender, content string }{
		{"b@x.com", "hello"},
		{"s@y.com", "hi there"},
	} {
		rec := appendMessage(t, h, AppendMessageRequest{RoomID: roomID, Sender: m.sender, Content: m.content})
		if rec.Code != http.StatusCreated {
			t.Fatalf("append status = %d", rec.Code)
		}
	}

	chats := fetchChats(t, h, "/api/chats/seller?sellerEmail="+url.QueryEscape("s@y.com"))
	if len(chats) != 1 {
		t.Fatalf("got %d conversations, want 1", len(chats))
	}
	if chats[0].CounterpartEmail != "b@x.com" {
		t.Errorf("counterpart = %q, want the buyer even for the seller's own reply", chats[0].CounterpartEmail)
	}
}

func TestChatsForUnknownUserAreEmpty(t *testing.T) {
	h, _ := newTestHandler()

	if chats := fetchChats(t, h, "/api/chats/buyer?buyerEmail=ghost%40x.com"); len(chats) != 0 {
		t.Errorf("buyer chats = %d, want 0", len(chats))
	}
	if chats := fetchChats(t, h, "/api/chats/seller?sellerEmail=ghost%40x.com"); len(chats) != 0 {
		t.Errorf("seller chats = %d, want 0", len(chats))
	}
	if chats := fetchChats(t, h, "/api/chats/buyer"); len(chats) != 0 {
		t.Errorf("missing email param: chats = %d, want 0", len(chats))
	}
}
