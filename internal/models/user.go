package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of a conversation a user sits on.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// User represents a chat participant. Participants are provisioned lazily on
// first contact, so a row may exist here before the marketplace proper knows
// anything else about the address.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
