// Package relay implements the live conversation router: WebSocket sessions,
// room membership and best-effort fan-out of chat messages. It is purely
// in-memory; durability is the message log's concern, not the relay's.
package relay

import "encoding/json"

// Event names carried on the socket.
const (
	EventJoin       = "join"        // client -> server: subscribe to a room
	EventMessage    = "message"     // both directions: a chat message
	EventNewMessage = "new-message" // server -> client: counterpart notification
)

// Event is one JSON frame on the chat socket.
type Event struct {
	Event string   `json:"event"`
	Room  string   `json:"room,omitempty"` // set on join frames
	Data  *Message `json:"data,omitempty"` // set on message frames
}

// Message is the live payload relayed between participants. Buyer and seller
// carry the decoded participant emails so the router can address the
// counterpart's notification room without parsing the token.
type Message struct {
	RoomID    string `json:"roomId"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt,omitempty"`
	Buyer     string `json:"buyer,omitempty"`
	Seller    string `json:"seller,omitempty"`
}

func encodeEvent(name string, msg *Message) ([]byte, error) {
	return json.Marshal(Event{Event: name, Data: msg})
}
