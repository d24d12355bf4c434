package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/agrotrade/chat/internal/metrics"
	"github.com/agrotrade/chat/internal/models"
	"github.com/agrotrade/chat/internal/room"
)

// maxContentBytes bounds a single message body.
const maxContentBytes = 4096

// ParticipantInfo identifies one side of a conversation in API responses.
type ParticipantInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// MessageResponse represents a persisted message in API responses.
type MessageResponse struct {
	ID        string          `json:"id"`
	Product   string          `json:"product"`
	Sender    ParticipantInfo `json:"sender"`
	Receiver  ParticipantInfo `json:"receiver"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"createdAt"`
}

// AppendMessageRequest represents the append request body. Buyer and seller
// accompany the token on the wire for the live relay's benefit; the token is
// authoritative here.
type AppendMessageRequest struct {
	RoomID    string `json:"roomId"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt,omitempty"`
	Buyer     string `json:"buyer,omitempty"`
	Seller    string `json:"seller,omitempty"`
}

func participantInfo(u *models.User) ParticipantInfo {
	if u == nil {
		return ParticipantInfo{}
	}
	return ParticipantInfo{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.Name,
		Role:  string(u.Role),
	}
}

func messageResponse(m models.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Product:   m.Product,
		Sender:    participantInfo(m.Sender),
		Receiver:  participantInfo(m.Receiver),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// ListMessages handles fetching a room's conversation history, oldest first.
// A missing, malformed or unresolvable room token yields an empty list, not
// an error: "no conversation yet" is a normal state for a chat the client is
// opening for the first time.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("roomId")
	if token == "" {
		h.JSON(w, http.StatusOK, []MessageResponse{})
		return
	}

	id, err := room.Parse(token)
	if err != nil {
		h.JSON(w, http.StatusOK, []MessageResponse{})
		return
	}

	buyer, err := h.db.GetUserByEmail(r.Context(), id.Buyer)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	seller, err := h.db.GetUserByEmail(r.Context(), id.Seller)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if buyer == nil || seller == nil {
		h.JSON(w, http.StatusOK, []MessageResponse{})
		return
	}

	messages, err := h.db.ListRoomMessages(r.Context(), id.Product, buyer.ID, seller.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	resp := make([]MessageResponse, len(messages))
	for i, m := range messages {
		resp[i] = messageResponse(m)
	}
	h.JSON(w, http.StatusOK, resp)
}

// AppendMessage handles persisting one message. The sender and receiver are
// provisioned on the fly when unknown; the receiver is whichever declared
// participant is not the sender.
func (h *Handler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := room.Parse(req.RoomID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid roomId")
		return
	}

	if req.Content == "" {
		h.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Content) > maxContentBytes {
		h.Error(w, http.StatusUnprocessableEntity, "content too long (max 4096 bytes)")
		return
	}

	receiverEmail, receiverSide, ok := id.Counterpart(req.Sender)
	if !ok {
		h.Error(w, http.StatusBadRequest, "sender is not a participant of this room")
		return
	}
	senderSide := room.SideBuyer
	if receiverSide == room.SideBuyer {
		senderSide = room.SideSeller
	}

	sender, err := h.resolveParticipant(r.Context(), req.Sender, sideRole(senderSide))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to resolve sender")
		return
	}
	receiver, err := h.resolveParticipant(r.Context(), receiverEmail, sideRole(receiverSide))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to resolve receiver")
		return
	}

	msg := &models.Message{
		Product:    id.Product,
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Content:    req.Content,
	}

	if req.CreatedAt != "" {
		at, err := time.Parse(time.RFC3339, req.CreatedAt)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid createdAt (want RFC 3339)")
			return
		}
		msg.CreatedAt = at.UTC()
	}

	if err := h.db.InsertMessage(r.Context(), msg); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}
	metrics.MessagesAppended.Inc()

	// Index for search. Best-effort: the message is already durable.
	if h.redis != nil {
		if err := h.redis.IndexMessage(r.Context(), msg); err != nil {
			h.log.Debug().Err(err).Str("message_id", msg.ID).Msg("search indexing failed")
		}
	}

	msg.Sender = sender
	msg.Receiver = receiver
	h.JSON(w, http.StatusCreated, messageResponse(*msg))
}

// resolveParticipant looks a participant up by email and provisions it on
// first contact. Concurrent provisioning of the same email resolves to a
// single row inside the store.
func (h *Handler) resolveParticipant(ctx context.Context, email string, role models.Role) (*models.User, error) {
	existing, err := h.db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	user, err := h.db.EnsureUser(ctx, localPart(email), email, role)
	if err != nil {
		return nil, err
	}
	metrics.UsersProvisioned.Inc()
	return user, nil
}

func sideRole(s room.Side) models.Role {
	if s == room.SideSeller {
		return models.RoleSeller
	}
	return models.RoleBuyer
}
