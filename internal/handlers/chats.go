package handlers

import (
	"net/http"
	"net/url"
	"sort"

	"github.com/agrotrade/chat/internal/models"
	"github.com/agrotrade/chat/internal/room"
)

// chatKey groups a user's messages into one conversation per product and
// counterpart.
type chatKey struct {
	product     string
	counterpart string
}

// decodeEmailParam undoes one extra layer of URI-component encoding that
// browser clients apply on top of normal query escaping.
func decodeEmailParam(raw string) string {
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func sortNewestFirst(chats []models.Conversation) {
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
}

// BuyerChats lists a buyer's conversations, one entry per (product, seller),
// newest first. An unknown buyer has no conversations.
func (h *Handler) BuyerChats(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("buyerEmail")
	if raw == "" {
		h.JSON(w, http.StatusOK, []models.Conversation{})
		return
	}
	buyerEmail := decodeEmailParam(raw)

	buyer, err := h.db.GetUserByEmail(r.Context(), buyerEmail)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if buyer == nil {
		h.JSON(w, http.StatusOK, []models.Conversation{})
		return
	}

	messages, err := h.db.ListMessagesBySender(r.Context(), buyer.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	chatMap := make(map[chatKey]models.Conversation)
	for _, msg := range messages {
		if msg.Receiver == nil {
			continue
		}
		sellerEmail := msg.Receiver.Email
		key := chatKey{product: msg.Product, counterpart: sellerEmail}

		if existing, ok := chatMap[key]; ok && !msg.CreatedAt.After(existing.CreatedAt) {
			continue
		}
		chatMap[key] = models.Conversation{
			RoomID:           room.ID{Product: msg.Product, Buyer: buyerEmail, Seller: sellerEmail}.Encode(),
			Product:          msg.Product,
			CounterpartEmail: sellerEmail,
			CounterpartName:  msg.Receiver.Name,
			LastMessage:      msg.Content,
			CreatedAt:        msg.CreatedAt,
		}
	}

	chats := make([]models.Conversation, 0, len(chatMap))
	for _, c := range chatMap {
		chats = append(chats, c)
	}
	sortNewestFirst(chats)
	h.JSON(w, http.StatusOK, chats)
}

// SellerChats lists a seller's conversations, one entry per (product, buyer),
// newest first. Messages in both directions count: a seller sees a
// conversation whether they have replied yet or not.
func (h *Handler) SellerChats(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("sellerEmail")
	if raw == "" {
		h.JSON(w, http.StatusOK, []models.Conversation{})
		return
	}
	sellerEmail := decodeEmailParam(raw)

	seller, err := h.db.GetUserByEmail(r.Context(), sellerEmail)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if seller == nil {
		h.JSON(w, http.StatusOK, []models.Conversation{})
		return
	}

	messages, err := h.db.ListMessagesInvolving(r.Context(), seller.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	chatMap := make(map[chatKey]models.Conversation)
	for _, msg := range messages {
		if msg.Sender == nil || msg.Receiver == nil {
			continue
		}

		// The buyer is whichever participant is not the seller.
		buyerUser := msg.Sender
		if buyerUser.ID == seller.ID {
			buyerUser = msg.Receiver
		}
		key := chatKey{product: msg.Product, counterpart: buyerUser.Email}

		if existing, ok := chatMap[key]; ok && !msg.CreatedAt.After(existing.CreatedAt) {
			continue
		}
		chatMap[key] = models.Conversation{
			RoomID:           room.ID{Product: msg.Product, Buyer: buyerUser.Email, Seller: sellerEmail}.Encode(),
			Product:          msg.Product,
			CounterpartEmail: buyerUser.Email,
			CounterpartName:  buyerUser.Name,
			LastMessage:      msg.Content,
			CreatedAt:        msg.CreatedAt,
		}
	}

	chats := make([]models.Conversation, 0, len(chatMap))
	for _, c := range chatMap {
		chats = append(chats, c)
	}
	sortNewestFirst(chats)
	h.JSON(w, http.StatusOK, chats)
}
