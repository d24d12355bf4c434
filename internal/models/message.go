package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is one persisted chat message between a buyer and a seller about a
// product. Messages are append-only; there is no edit or delete.
type Message struct {
	ID         string    `json:"id"` // ULID
	Product    string    `json:"product"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`

	// Populated on reads by joining the users table. Zero-valued on writes.
	Sender   *User `json:"sender,omitempty"`
	Receiver *User `json:"receiver,omitempty"`
}
