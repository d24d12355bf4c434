package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/agrotrade/chat/internal/models"
)

// DataStore defines the interface for durable storage of chat participants
// and the append-only message log. PostgresStore and SQLiteStore implement it
// for deployment; MemoryStore implements it for tests.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Participant operations
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// EnsureUser returns the user with the given email, creating it first if
	// no row exists. Creation races on the same email resolve to a single row
	// via the unique constraint; the loser reads the winner's row.
	EnsureUser(ctx context.Context, name, email string, role models.Role) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	// Message log operations
	InsertMessage(ctx context.Context, msg *models.Message) error
	// ListRoomMessages returns every message for the product exchanged between
	// the two participants, in either direction, ordered by creation time
	// ascending with insertion order breaking ties.
	ListRoomMessages(ctx context.Context, product string, buyerID, sellerID uuid.UUID) ([]models.Message, error)
	// ListMessagesBySender returns all messages the user has sent, with
	// sender and receiver populated, oldest first.
	ListMessagesBySender(ctx context.Context, senderID uuid.UUID) ([]models.Message, error)
	// ListMessagesInvolving returns all messages the user has sent or
	// received, with sender and receiver populated, oldest first.
	ListMessagesInvolving(ctx context.Context, userID uuid.UUID) ([]models.Message, error)
	GetMessagesByID(ctx context.Context, ids []string) ([]models.Message, error)
	CountMessages(ctx context.Context) (int64, error)
	LastMessageAt(ctx context.Context) (*time.Time, error)
}

// assignDefaults stamps a new message with a ULID and creation time when the
// caller did not supply them. ULIDs sort in insertion order, which is what
// breaks ties between messages sharing a timestamp.
func assignDefaults(msg *models.Message) {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
}
