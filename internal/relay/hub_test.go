package relay

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func testSession(t *testing.T, id string) *Session {
	t.Helper()
	// No conn attached and never started; frames land in SendQueue.
	return NewSession(id, nil, zerolog.Nop())
}

func drainEvents(t *testing.T, s *Session) []Event {
	t.Helper()
	var events []Event
	for {
		select {
		case frame := <-s.SendQueue:
			var ev Event
			if err := json.Unmarshal(frame, &ev); err != nil {
				t.Fatalf("bad frame %q: %v", frame, err)
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestPublishDeliversToSubscribersOnce(t *testing.T) {
	h := NewHub(zerolog.Nop())

	sub := testSession(t, "sub")
	other := testSession(t, "other")
	h.Register(sub)
	h.Register(other)

	h.Join(sub, "room-1")
	h.Join(sub, "room-1") // idempotent
	h.Join(other, "room-2")

	h.Publish(&Message{RoomID: "room-1", Sender: "b@x.com", Content: "hello"})

	events := drainEvents(t, sub)
	if len(events) != 1 {
		t.Fatalf("subscriber got %d events, want 1", len(events))
	}
	if events[0].Event != EventMessage || events[0].Data.Content != "hello" {
		t.Errorf("unexpected event %+v", events[0])
	}

	if got := drainEvents(t, other); len(got) != 0 {
		t.Errorf("session in another room got %d events, want 0", len(got))
	}
}

func TestDisconnectStopsDelivery(t *testing.T) {
	h := NewHub(zerolog.Nop())

	sub := testSession(t, "sub")
	h.Register(sub)
	h.Join(sub, "room-1")
	h.Join(sub, "inbox@x.com")

	h.Disconnect(sub)

	h.Publish(&Message{RoomID: "room-1", Sender: "b@x.com", Content: "after"})
	if got := drainEvents(t, sub); len(got) != 0 {
		t.Errorf("disconnected session got %d events, want 0", len(got))
	}

	if h.RoomCount() != 0 {
		t.Errorf("RoomCount = %d after disconnect, want 0", h.RoomCount())
	}
	if h.ConnectionCount() != 0 {
		t.Errorf("ConnectionCount = %d after disconnect, want 0", h.ConnectionCount())
	}
}

func TestPublishEmptyRoomIsNoOp(t *testing.T) {
	h := NewHub(zerolog.Nop())
	// Must not panic or error; offline delivery happens via the log.
	h.Publish(&Message{RoomID: "nobody-here", Sender: "b@x.com", Content: "hi"})
}

func TestNotificationGoesToCounterpart(t *testing.T) {
	h := NewHub(zerolog.Nop())

	sellerInbox := testSession(t, "seller-inbox")
	buyerInbox := testSession(t, "buyer-inbox")
	h.Register(sellerInbox)
	h.Register(buyerInbox)
	h.Join(sellerInbox, "seller@y.com")
	h.Join(buyerInbox, "buyer@x.com")

	// Buyer sends: seller's identity room gets the notification.
	h.Publish(&Message{
		RoomID: "room-1", Sender: "buyer@x.com", Content: "hi",
		Buyer: "buyer@x.com", Seller: "seller@y.com",
	})

	events := drainEvents(t, sellerInbox)
	if len(events) != 1 || events[0].Event != EventNewMessage {
		t.Fatalf("seller inbox got %+v, want one new-message", events)
	}
	if got := drainEvents(t, buyerInbox); len(got) != 0 {
		t.Errorf("buyer inbox got %d events, want 0", len(got))
	}

	// Seller replies: buyer's identity room gets the notification.
	h.Publish(&Message{
		RoomID: "room-1", Sender: "seller@y.com", Content: "yo",
		Buyer: "buyer@x.com", Seller: "seller@y.com",
	})

	events = drainEvents(t, buyerInbox)
	if len(events) != 1 || events[0].Event != EventNewMessage {
		t.Fatalf("buyer inbox got %+v, want one new-message", events)
	}
}

func TestNoNotificationForUnknownSender(t *testing.T) {
	h := NewHub(zerolog.Nop())

	sellerInbox := testSession(t, "seller-inbox")
	buyerInbox := testSession(t, "buyer-inbox")
	h.Register(sellerInbox)
	h.Register(buyerInbox)
	h.Join(sellerInbox, "seller@y.com")
	h.Join(buyerInbox, "buyer@x.com")

	h.Publish(&Message{
		RoomID: "room-1", Sender: "stranger@z.com", Content: "hi",
		Buyer: "buyer@x.com", Seller: "seller@y.com",
	})

	if got := drainEvents(t, sellerInbox); len(got) != 0 {
		t.Errorf("seller inbox got %d events, want 0", len(got))
	}
	if got := drainEvents(t, buyerInbox); len(got) != 0 {
		t.Errorf("buyer inbox got %d events, want 0", len(got))
	}
}

func TestNoNotificationWithoutParticipants(t *testing.T) {
	h := NewHub(zerolog.Nop())

	inbox := testSession(t, "inbox")
	h.Register(inbox)
	h.Join(inbox, "seller@y.com")

	// Buyer/seller absent from the payload: room fan-out only.
	h.Publish(&Message{RoomID: "room-1", Sender: "buyer@x.com", Content: "hi"})

	if got := drainEvents(t, inbox); len(got) != 0 {
		t.Errorf("inbox got %d events, want 0", len(got))
	}
}

func TestPerSessionPublishOrder(t *testing.T) {
	h := NewHub(zerolog.Nop())

	sub := testSession(t, "sub")
	h.Register(sub)
	h.Join(sub, "room-1")

	for _, content := range []string{"one", "two", "three"} {
		h.Publish(&Message{RoomID: "room-1", Sender: "b@x.com", Content: content})
	}

	events := drainEvents(t, sub)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, want := range []string{"one", "two", "three"} {
		if events[i].Data.Content != want {
			t.Errorf("event %d content = %q, want %q", i, events[i].Data.Content, want)
		}
	}
}

func TestSelfSenderReceivesRoomCopy(t *testing.T) {
	// The sender's own session, if joined to the room, receives the room
	// broadcast just like any subscriber.
	h := NewHub(zerolog.Nop())

	sender := testSession(t, "sender")
	h.Register(sender)
	h.Join(sender, "room-1")

	h.Publish(&Message{RoomID: "room-1", Sender: "b@x.com", Content: "echo"})

	events := drainEvents(t, sender)
	if len(events) != 1 || events[0].Event != EventMessage {
		t.Fatalf("sender got %+v, want one message", events)
	}
}
