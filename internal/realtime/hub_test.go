package realtime

import (
	"context"
	"testing"
	"time"
)

func recvHint(t *testing.T, ch <-chan Hint, timeout time.Duration) Hint {
	t.Helper()
	select {
	case h, ok := <-ch:
		if !ok {
			t.Fatal("hint channel closed")
		}
		return h
	case <-time.After(timeout):
		t.Fatal("timed out waiting for hint")
	}
	return Hint{}
}

func TestHub_BroadcastFiltersByStudent(t *testing.T) {
	hub := NewHub()
	all := hub.Subscribe(0)
	one := hub.Subscribe(1)
	two := hub.Subscribe(2)

	hub.Broadcast(Hint{Type: HintProgressUpdated, StudentID: 1, TopicID: 3})

	if got := recvHint(t, all.C, time.Second); got.TopicID != 3 {
		t.Errorf("all subscriber got %+v", got)
	}
	if got := recvHint(t, one.C, time.Second); got.StudentID != 1 {
		t.Errorf("student 1 subscriber got %+v", got)
	}
	select {
	case h := <-two.C:
		t.Errorf("student 2 subscriber got %+v, want nothing", h)
	default:
	}
}

func TestHub_OrderingPreserved(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(0)

	for i := 1; i <= 5; i++ {
		hub.Broadcast(Hint{Type: HintProgressUpdated, StudentID: 1, TopicID: i})
	}
	for i := 1; i <= 5; i++ {
		if got := recvHint(t, sub.C, time.Second); got.TopicID != i {
			t.Fatalf("hint %d topic = %d", i, got.TopicID)
		}
	}
}

func TestHub_SlowSubscriberDropsHints(t *testing.T) {
	hub := NewHub()
	slow := hub.Subscribe(0)

	for i := 0; i < subscriberBuffer+4; i++ {
		hub.Broadcast(Hint{Type: HintProgressUpdated, StudentID: 1, TopicID: i})
	}

	if got := hub.Dropped(); got != 4 {
		t.Errorf("Dropped() = %d, want 4", got)
	}
	if len(slow.C) != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", len(slow.C), subscriberBuffer)
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(0)
	if hub.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", hub.Len())
	}

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)

	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
	if hub.Len() != 0 {
		t.Errorf("Len() = %d, want 0", hub.Len())
	}

	// Reconnecting gets a fresh subscription.
	again := hub.Subscribe(0)
	hub.Broadcast(Hint{Type: HintProgressUpdated, StudentID: 1, TopicID: 2})
	recvHint(t, again.C, time.Second)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(0)
	hub.Close()

	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed after Close")
	}
	late := hub.Subscribe(0)
	if _, ok := <-late.C; ok {
		t.Error("subscribing to a closed hub should yield a closed channel")
	}
	hub.Unsubscribe(late)
}

func TestBroker_MemoryBus(t *testing.T) {
	hub := NewHub()
	broker := NewBroker(hub, nil)
	if err := broker.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	sub := hub.Subscribe(7)

	if err := broker.PublishChange(context.Background(), 7, 4); err != nil {
		t.Fatalf("PublishChange() error = %v", err)
	}

	got := recvHint(t, sub.C, time.Second)
	want := Hint{Type: HintProgressUpdated, StudentID: 7, TopicID: 4}
	if got != want {
		t.Errorf("hint = %+v, want %+v", got, want)
	}

	if err := broker.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, ok := <-sub.C; ok {
		t.Error("subscribers should be disconnected on Close")
	}
}

func TestMemoryBus_NilCallback(t *testing.T) {
	if err := NewMemoryBus().StartForwarder(context.Background(), nil); err == nil {
		t.Error("StartForwarder(nil) should error")
	}
}

func TestRedisBus_NotInitialized(t *testing.T) {
	var bus *RedisBus
	if err := bus.Publish(context.Background(), Hint{}); err == nil {
		t.Error("Publish() on nil bus should error")
	}
	if err := NewRedisBus(nil, "").StartForwarder(context.Background(), func(Hint) {}); err == nil {
		t.Error("StartForwarder() without client should error")
	}
	if got := NewRedisBus(nil, "").channel; got != DefaultChannel {
		t.Errorf("channel = %q, want %q", got, DefaultChannel)
	}
}
