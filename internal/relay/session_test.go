package relay

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestTrySendQueuesFrame(t *testing.T) {
	s := NewSession("s1", nil, zerolog.Nop())

	if !s.TrySend([]byte("hello")) {
		t.Fatal("TrySend on fresh session should succeed")
	}
	if len(s.SendQueue) != 1 {
		t.Errorf("queue length = %d, want 1", len(s.SendQueue))
	}
}

func TestTrySendAfterClose(t *testing.T) {
	s := NewSession("s1", nil, zerolog.Nop())
	s.Close()

	if s.TrySend([]byte("late")) {
		t.Error("TrySend on closed session should fail")
	}

	select {
	case <-s.Done():
	default:
		t.Error("Done should be closed after Close")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := NewSession("s1", nil, zerolog.Nop())
	s.Close()
	s.Close() // must not panic on the already-closed done channel
}

func TestTrySendOverflowDropsSession(t *testing.T) {
	s := NewSession("s1", nil, zerolog.Nop())

	for i := 0; i < SendQueueSize; i++ {
		if !s.TrySend([]byte("fill")) {
			t.Fatalf("send %d should fit in the queue", i)
		}
	}

	if s.TrySend([]byte("overflow")) {
		t.Error("send past capacity should fail")
	}

	select {
	case <-s.Done():
	default:
		t.Error("overflowing session should be closed")
	}
}
