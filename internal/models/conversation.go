package models

import "time"

// Conversation is a per-(product, counterpart) summary of a user's chat
// history, used by the buyer and seller inbox listings. It is derived from the
// message log on demand and never stored.
type Conversation struct {
	RoomID           string    `json:"roomId"`
	Product          string    `json:"productId"`
	CounterpartEmail string    `json:"counterpartEmail"`
	CounterpartName  string    `json:"counterpartName,omitempty"`
	LastMessage      string    `json:"lastMessage"`
	CreatedAt        time.Time `json:"createdAt"`
}
