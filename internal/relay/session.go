package relay

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// SendQueueSize bounds the per-connection outbound buffer. A subscriber
	// that cannot drain this many frames is dropped rather than allowed to
	// stall fan-out for everyone else.
	SendQueueSize = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Session is one connected chat client. It owns the write side of the
// connection; the hub only ever hands it frames through TrySend.
type Session struct {
	ID string

	conn      *websocket.Conn
	SendQueue chan []byte
	done      chan struct{}
	closed    atomic.Int32
	log       zerolog.Logger
}

// NewSession creates a session around an upgraded connection. conn may be nil
// in tests; such a session buffers frames but must not be started.
func NewSession(id string, conn *websocket.Conn, log zerolog.Logger) *Session {
	return &Session{
		ID:        id,
		conn:      conn,
		SendQueue: make(chan []byte, SendQueueSize),
		done:      make(chan struct{}),
		log:       log.With().Str("session_id", id).Logger(),
	}
}

// Start launches the write loop.
func (s *Session) Start() {
	go s.writeLoop()
}

// Done is closed when the session shuts down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// TrySend queues a frame for delivery without blocking. A full queue means
// the client is not keeping up; the session is closed and false returned.
func (s *Session) TrySend(frame []byte) bool {
	if s.closed.Load() == 1 {
		return false
	}
	select {
	case s.SendQueue <- frame:
		return true
	default:
		s.log.Warn().Msg("session: send queue overflow, dropping connection")
		s.CloseWithReason(websocket.CloseInternalServerErr, "send queue overflow")
		return false
	}
}

// Close shuts the session down with a normal closure code.
func (s *Session) Close() {
	s.CloseWithReason(websocket.CloseNormalClosure, "server closing")
}

// CloseWithReason shuts the session down once, sending a close frame when a
// real connection is attached.
func (s *Session) CloseWithReason(code int, reason string) {
	if !s.closed.CompareAndSwap(0, 1) {
		return
	}

	close(s.done)

	if s.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		s.conn.Close()
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case frame := <-s.SendQueue:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug().Err(err).Msg("session: write error")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debug().Err(err).Msg("session: ping error")
				return
			}
		case <-s.done:
			return
		}
	}
}
