package relay

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/agrotrade/chat/internal/metrics"
)

// Hub routes published messages to the sessions subscribed to their rooms.
// It is constructed explicitly and injected wherever needed; there is no
// package-level instance.
//
// Membership tables are guarded by one mutex. Publish snapshots the
// subscriber set under the read lock and writes outside it, so a concurrent
// join or disconnect can never corrupt an in-flight fan-out; a subscriber
// added mid-publish may or may not see that publish.
type Hub struct {
	log zerolog.Logger

	mu       sync.RWMutex
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:      log,
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]map[string]struct{}),
	}
}

// Register makes the session known to the hub before it joins any room, so
// Disconnect is always well-defined.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		h.sessions[s] = make(map[string]struct{})
	}
}

// Join subscribes the session to a room. Joining twice is a no-op. The hub
// does not validate the token format; callers own that concern.
func (h *Hub) Join(s *Session, roomToken string) {
	if roomToken == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		h.sessions[s] = make(map[string]struct{})
	}
	h.sessions[s][roomToken] = struct{}{}

	members, ok := h.rooms[roomToken]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[roomToken] = members
		metrics.RoomsActive.Inc()
	}
	members[s] = struct{}{}
}

// Disconnect removes the session from every room it joined. It is invoked
// from transport teardown for any close reason and is safe to call more than
// once.
func (h *Hub) Disconnect(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomToken := range h.sessions[s] {
		members := h.rooms[roomToken]
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, roomToken)
			metrics.RoomsActive.Dec()
		}
	}
	delete(h.sessions, s)
}

// Publish fans the message out to every subscriber of its room, and sends a
// new-message copy to the counterpart's identity room when the sender is
// exactly one of the declared buyer/seller. Delivery is best-effort and
// at-most-once per subscriber; a room with no subscribers is a silent no-op.
func (h *Hub) Publish(msg *Message) {
	frame, err := encodeEvent(EventMessage, msg)
	if err != nil {
		h.log.Error().Err(err).Msg("hub: encode message")
		return
	}

	h.deliver(msg.RoomID, frame, EventMessage)

	recipient, ok := notificationRecipient(msg)
	if !ok {
		return
	}

	notify, err := encodeEvent(EventNewMessage, msg)
	if err != nil {
		h.log.Error().Err(err).Msg("hub: encode notification")
		return
	}
	h.deliver(recipient, notify, EventNewMessage)
}

// notificationRecipient picks the identity room of whichever declared
// participant is not the sender. A sender matching neither side gets no
// notification copy.
func notificationRecipient(msg *Message) (string, bool) {
	if msg.Buyer == "" || msg.Seller == "" {
		return "", false
	}
	switch msg.Sender {
	case msg.Buyer:
		return msg.Seller, true
	case msg.Seller:
		return msg.Buyer, true
	default:
		return "", false
	}
}

func (h *Hub) deliver(roomToken string, frame []byte, event string) {
	h.mu.RLock()
	members := h.rooms[roomToken]
	snapshot := make([]*Session, 0, len(members))
	for s := range members {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	for _, s := range snapshot {
		// A failed send only affects this subscriber; TrySend closes the
		// lagging session itself.
		if s.TrySend(frame) {
			metrics.EventsDelivered.WithLabelValues(event).Inc()
		} else {
			metrics.EventsDropped.WithLabelValues(event).Inc()
		}
	}
}

// ConnectionCount returns the number of registered sessions.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// RoomCount returns the number of rooms with at least one subscriber.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// CloseAll shuts down every session, for server shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	snapshot := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	for _, s := range snapshot {
		s.Close()
	}
}
