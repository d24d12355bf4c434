package agrochat

import (
	"context"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// LiveMessage is the payload relayed over the live socket.
type LiveMessage struct {
	RoomID    string `json:"roomId"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt,omitempty"`
	Buyer     string `json:"buyer,omitempty"`
	Seller    string `json:"seller,omitempty"`
}

// LiveEvent is one JSON frame on the live socket. Event is "message" for room
// broadcasts and "new-message" for counterpart notifications.
type LiveEvent struct {
	Event string       `json:"event"`
	Room  string       `json:"room,omitempty"`
	Data  *LiveMessage `json:"data,omitempty"`
}

// Live is one open connection to the relay.
type Live struct {
	conn *websocket.Conn
}

// ConnectLive opens a WebSocket connection to the relay.
func (c *Client) ConnectLive(ctx context.Context) (*Live, error) {
	wsURL := strings.Replace(c.BaseURL, "http", "ws", 1) + "/ws"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return &Live{conn: conn}, nil
}

// Join subscribes the connection to a room. The token may be a conversation
// token from RoomToken or a bare email for the identity notification room.
func (l *Live) Join(roomToken string) error {
	return l.conn.WriteJSON(LiveEvent{Event: "join", Room: roomToken})
}

// Send publishes a message to its room.
func (l *Live) Send(msg LiveMessage) error {
	return l.conn.WriteJSON(LiveEvent{Event: "message", Data: &msg})
}

// Next blocks until the server delivers the next event.
func (l *Live) Next() (*LiveEvent, error) {
	var ev LiveEvent
	if err := l.conn.ReadJSON(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Close closes the connection.
func (l *Live) Close() error {
	// Best effort; the server also reaps dead connections on ping timeout.
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return l.conn.Close()
}
