package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEmitReachesAllHandlers(t *testing.T) {
	bus := NewEventBus()

	var count atomic.Int32
	done := make(chan struct{}, 2)
	for _, name := range []string{"a", "b"} {
		bus.Subscribe(EventServerDown, name, func(ctx context.Context, e Event) error {
			count.Add(1)
			done <- struct{}{}
			return nil
		})
	}

	bus.Emit(context.Background(), Event{Type: EventServerDown, Source: "test"})

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler not called")
		}
	}
	if count.Load() != 2 {
		t.Fatalf("count = %d", count.Load())
	}
	bus.Stop()
}

func TestEmitSyncReturnsFirstErrorAndSurvivesPanic(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	boom := errors.New("boom")
	var ok atomic.Bool
	bus.Subscribe(EventHostStats, "fails", func(context.Context, Event) error { return boom })
	bus.Subscribe(EventHostStats, "panics", func(context.Context, Event) error { panic("nope") })
	bus.Subscribe(EventHostStats, "works", func(context.Context, Event) error {
		ok.Store(true)
		return nil
	})

	err := bus.EmitSync(context.Background(), Event{Type: EventHostStats})
	if !errors.Is(err, boom) {
		t.Fatalf("EmitSync = %v, want boom", err)
	}
	if !ok.Load() {
		t.Fatal("healthy handler did not run")
	}
}

func TestEventIsTimestamped(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	var got Event
	bus.Subscribe(EventShutdown, "t", func(_ context.Context, e Event) error {
		got = e
		return nil
	})
	bus.EmitSync(context.Background(), Event{Type: EventShutdown})

	if got.Time.IsZero() {
		t.Fatal("event time not set")
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	bus.Subscribe(EventServerUp, "a", func(context.Context, Event) error { return nil })
	bus.Subscribe(EventServerUp, "b", func(context.Context, Event) error { return nil })
	bus.Unsubscribe(EventServerUp, "a")

	if n := bus.HandlerCount(EventServerUp); n != 1 {
		t.Fatalf("HandlerCount = %d, want 1", n)
	}
}

func TestStopWaitsAndIsIdempotent(t *testing.T) {
	bus := NewEventBus()

	var finished atomic.Bool
	bus.Subscribe(EventCommandExecuted, "slow", func(context.Context, Event) error {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	bus.Emit(context.Background(), Event{Type: EventCommandExecuted})
	bus.Stop()
	if !finished.Load() {
		t.Fatal("Stop returned before the handler finished")
	}
	bus.Stop()

	select {
	case <-bus.StopCh():
	default:
		t.Fatal("stop channel not closed")
	}

	var called atomic.Bool
	bus.Subscribe(EventCommandExecuted, "late", func(context.Context, Event) error {
		called.Store(true)
		return nil
	})
	bus.Emit(context.Background(), Event{Type: EventCommandExecuted})
	if err := bus.EmitSync(context.Background(), Event{Type: EventCommandExecuted}); err != nil {
		t.Fatal(err)
	}
	if called.Load() {
		t.Fatal("events delivered after Stop")
	}
}
