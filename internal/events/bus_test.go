package events

import (
	"reflect"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan SessionStateEvent, 1)

	unsub := bus.Subscribe(func(e SessionStateEvent) {
		received <- e
	})
	defer unsub()

	ev := SessionStateEvent{
		DevicePath: "/dev/video0",
		State:      StateStreaming,
		Timestamp:  "2026-01-27T10:30:00Z",
	}
	bus.Publish(ev)

	select {
	case got := <-received:
		if got != ev {
			t.Errorf("Expected %+v, got %+v", ev, got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	received1 := make(chan FrameCapturedEvent, 1)
	received2 := make(chan FrameCapturedEvent, 1)

	unsub1 := bus.Subscribe(func(e FrameCapturedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e FrameCapturedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(FrameCapturedEvent{DevicePath: "/dev/video0", Sequence: 1, Bytes: 100})

	for _, ch := range []chan FrameCapturedEvent{received1, received2} {
		select {
		case e := <-ch:
			if e.Sequence != 1 {
				t.Errorf("Expected sequence 1, got %d", e.Sequence)
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered to every subscriber")
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan FrameSkippedEvent, 1)

	unsub := bus.Subscribe(func(e FrameSkippedEvent) {
		received <- e
	})

	bus.Publish(FrameSkippedEvent{DevicePath: "/dev/video0", Reason: SkipNotReady})
	<-received

	unsub()

	bus.Publish(FrameSkippedEvent{DevicePath: "/dev/video0", Reason: SkipIOError})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeIsolation(t *testing.T) {
	bus := New()
	states := make(chan SessionStateEvent, 1)

	unsub := bus.Subscribe(func(e SessionStateEvent) {
		states <- e
	})
	defer unsub()

	bus.Publish(FrameSkippedEvent{Reason: SkipTimeout})

	select {
	case e := <-states:
		t.Fatalf("SessionStateEvent subscriber received %+v", e)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_NilPublishIsNoop(_ *testing.T) {
	var bus *Bus
	bus.Publish(SessionStateEvent{State: StateIdle})
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("Expected no-op unsubscribe func")
	}
	unsub()
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)

	unsub := SubscribeToChannel[FormatNegotiatedEvent](bus, ch)
	defer unsub()

	bus.Publish(FormatNegotiatedEvent{PixelFormat: "MJPG", Width: 640, Height: 480})

	select {
	case v := <-ch:
		e, ok := v.(FormatNegotiatedEvent)
		if !ok || e.PixelFormat != "MJPG" {
			t.Errorf("unexpected value %#v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("event not forwarded to channel")
	}
}

func TestStreamCarriesEverySessionEvent(t *testing.T) {
	bus := New()
	stream := NewStream(bus, 4)
	defer stream.Close()

	bus.Publish(SessionStateEvent{State: StateStreaming})
	bus.Publish(FormatNegotiatedEvent{PixelFormat: "YUYV"})
	bus.Publish(FrameCapturedEvent{Sequence: 7})
	bus.Publish(FrameSkippedEvent{Reason: SkipIOError})

	names := SSEMessageTypes()
	seen := make(map[string]bool)
	for range 4 {
		select {
		case v := <-stream.Events():
			for name, typ := range names {
				if reflect.TypeOf(typ) == reflect.TypeOf(v) {
					seen[name] = true
				}
			}
		case <-time.After(time.Second):
			t.Fatalf("only %d events arrived", len(seen))
		}
	}
	if len(seen) != len(names) {
		t.Errorf("received %v, want all of %v", seen, names)
	}
	if stream.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", stream.Dropped())
	}
}

func TestStreamDropsWhenFull(t *testing.T) {
	bus := New()
	stream := NewStream(bus, 1)

	bus.Publish(FrameCapturedEvent{Sequence: 1})
	bus.Publish(FrameCapturedEvent{Sequence: 2})
	bus.Publish(FrameCapturedEvent{Sequence: 3})

	deadline := time.After(time.Second)
	for stream.Dropped() < 2 {
		select {
		case <-deadline:
			t.Fatalf("Dropped() = %d, want 2", stream.Dropped())
		case <-time.After(time.Millisecond):
		}
	}

	stream.Close()
	stream.Close()
	bus.Publish(FrameCapturedEvent{Sequence: 4})
	time.Sleep(10 * time.Millisecond)
	if got := stream.Dropped(); got != 2 {
		t.Errorf("Dropped() after Close = %d, want 2", got)
	}
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		ev   Event
		want uint32
	}{
		{SessionStateEvent{}, TypeSessionState},
		{FormatNegotiatedEvent{}, TypeFormatNegotiated},
		{FrameCapturedEvent{}, TypeFrameCaptured},
		{FrameSkippedEvent{}, TypeFrameSkipped},
	}
	for _, tt := range tests {
		if got := tt.ev.Type(); got != tt.want {
			t.Errorf("%T.Type() = %d, want %d", tt.ev, got, tt.want)
		}
	}
}
