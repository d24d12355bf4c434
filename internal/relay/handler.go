package relay

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agrotrade/chat/internal/metrics"
)

// Handler upgrades HTTP requests to chat connections and feeds incoming
// frames into the hub.
type Handler struct {
	hub *Hub
	log zerolog.Logger
}

// NewHandler creates a WebSocket handler bound to the given hub.
func NewHandler(hub *Hub, log zerolog.Logger) *Handler {
	return &Handler{hub: hub, log: log}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Transport security is an external concern; browsers connect from the
	// marketplace origin, bots from anywhere.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("ws: upgrade failed")
		return
	}

	session := NewSession(uuid.NewString(), conn, h.log)
	h.hub.Register(session)
	session.Start()

	metrics.ConnectionsOpen.Inc()
	h.log.Info().Str("session_id", session.ID).Str("remote", r.RemoteAddr).Msg("ws: connected")

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.readLoop(session)
}

func (h *Handler) readLoop(s *Session) {
	defer func() {
		h.hub.Disconnect(s)
		s.Close()
		metrics.ConnectionsOpen.Dec()
		h.log.Info().Str("session_id", s.ID).Msg("ws: disconnected")
	}()

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Str("session_id", s.ID).Err(err).Msg("ws: read error")
			}
			return
		}

		var event Event
		if err := json.Unmarshal(frame, &event); err != nil {
			h.log.Debug().Str("session_id", s.ID).Err(err).Msg("ws: bad frame")
			continue
		}

		switch event.Event {
		case EventJoin:
			h.hub.Join(s, event.Room)
		case EventMessage:
			if event.Data == nil {
				continue
			}
			h.hub.Publish(event.Data)
		default:
			h.log.Debug().Str("session_id", s.ID).Str("event", event.Event).Msg("ws: unknown event")
		}
	}
}
