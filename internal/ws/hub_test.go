package ws

import (
	"errors"
	"testing"
	"time"
)

type stubSubscriber struct {
	received chan []byte
	closed   chan struct{}
	fail     bool
}

func newStub(fail bool) *stubSubscriber {
	return &stubSubscriber{received: make(chan []byte, 4), closed: make(chan struct{}), fail: fail}
}

func (s *stubSubscriber) Send(p []byte) error {
	if s.fail {
		return errors.New("broken pipe")
	}
	s.received <- p
	return nil
}

func (s *stubSubscriber) Close() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
}

func TestHubDeliversByTopic(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	kyc := newStub(false)
	other := newStub(false)
	hub.Register("kyc", kyc)
	hub.Register("other", other)

	hub.Broadcast("kyc", []byte(`{"type":"submitted"}`))

	select {
	case got := <-kyc.received:
		if string(got) != `{"type":"submitted"}` {
			t.Fatalf("unexpected payload %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	select {
	case <-other.received:
		t.Fatal("message leaked to other topic")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsFailingSubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	broken := newStub(true)
	hub.Register("kyc", broken)
	hub.Broadcast("kyc", []byte("x"))

	select {
	case <-broken.closed:
	case <-time.After(time.Second):
		t.Fatal("failing subscriber not closed")
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	sub := newStub(false)
	hub.Register("kyc", sub)
	hub.Unregister("kyc", sub)
	hub.Broadcast("kyc", []byte("x"))

	select {
	case <-sub.received:
		t.Fatal("unregistered subscriber received message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubStopClosesSubscribers(t *testing.T) {
	hub := NewHub()
	sub := newStub(false)
	hub.Register("kyc", sub)
	hub.Stop()

	select {
	case <-sub.closed:
	case <-time.After(time.Second):
		t.Fatal("subscriber not closed on stop")
	}
	hub.Broadcast("kyc", []byte("ignored"))
}

type slowSubscriber struct {
	delay time.Duration
	calls chan struct{}
}

func (s *slowSubscriber) Send([]byte) error {
	s.calls <- struct{}{}
	time.Sleep(s.delay)
	return nil
}

func (s *slowSubscriber) Close() {}

func TestHubBroadcastDoesNotWaitForSlowSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	slow := &slowSubscriber{delay: time.Second, calls: make(chan struct{}, 8)}
	hub.Register("kyc", slow)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if !hub.Broadcast("kyc", []byte("x")) {
			t.Fatalf("broadcast %d dropped", i)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("broadcast blocked for %s", elapsed)
	}
	select {
	case <-slow.calls:
	case <-time.After(time.Second):
		t.Fatal("slow subscriber never called")
	}
}

func TestHubBroadcastAfterStop(t *testing.T) {
	hub := NewHub()
	hub.Stop()
	if hub.Broadcast("kyc", []byte("x")) {
		t.Fatal("expected broadcast on stopped hub to report a drop")
	}
}
