package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pawdiary/pawdiary/internal/event"
	"github.com/pawdiary/pawdiary/internal/format"
)

func TestPublishConsumeEvent(t *testing.T) {
	b := New()
	ev := &event.Event{ID: "e1", Category: "weather", Name: "rain_started"}
	b.PublishEvent(ev)

	got, err := b.ConsumeEvent(context.Background())
	if err != nil {
		t.Fatalf("ConsumeEvent() error = %v", err)
	}
	if got.ID != "e1" {
		t.Errorf("got event %q, want e1", got.ID)
	}
}

func TestConsumeEventCancelled(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.ConsumeEvent(ctx); err == nil {
		t.Error("ConsumeEvent() on cancelled context = nil error")
	}
}

func TestEntryFanOut(t *testing.T) {
	b := New()
	var delivered atomic.Int32
	b.SubscribeEntries(func(*format.Entry) { delivered.Add(1) })
	b.SubscribeEntries(func(*format.Entry) { delivered.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchEntries(ctx)

	b.PublishEntry(&format.Entry{EntryID: "d1"})

	deadline := time.Now().Add(time.Second)
	for delivered.Load() != 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if delivered.Load() != 2 {
		t.Errorf("delivered = %d, want 2", delivered.Load())
	}
}
