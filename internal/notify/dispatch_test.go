package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDispatcherRunsTasks(t *testing.T) {
	d := NewDispatcher(2, 8, discardLogger(), nil)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		if ok := d.Submit("count", func(context.Context) error {
			ran.Add(1)
			return nil
		}); !ok {
			t.Fatalf("Submit() %d dropped", i)
		}
	}

	d.Stop()
	if got := ran.Load(); got != 5 {
		t.Fatalf("ran %d tasks, want 5", got)
	}
}

func TestDispatcherSwallowsTaskErrors(t *testing.T) {
	d := NewDispatcher(1, 4, discardLogger(), nil)

	d.Submit("fail", func(context.Context) error {
		return errors.New("provider down")
	})

	var after atomic.Bool
	d.Submit("next", func(context.Context) error {
		after.Store(true)
		return nil
	})

	d.Stop()
	if !after.Load() {
		t.Fatal("task after a failing task did not run")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	var dropped atomic.Int32
	d := NewDispatcher(1, 1, discardLogger(), func() {
		dropped.Add(1)
	})

	block := make(chan struct{})
	started := make(chan struct{})

	// Occupy the single worker.
	d.Submit("block", func(context.Context) error {
		close(started)
		<-block
		return nil
	})
	<-started

	// Fill the queue.
	if ok := d.Submit("queued", func(context.Context) error { return nil }); !ok {
		t.Fatal("queue slot submit was dropped")
	}

	// Queue is full now; this one must be dropped without blocking.
	done := make(chan bool, 1)
	go func() {
		done <- d.Submit("overflow", func(context.Context) error { return nil })
	}()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("Submit() on a full queue reported success")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit() blocked on a full queue")
	}

	if got := dropped.Load(); got != 1 {
		t.Fatalf("onDrop called %d times, want 1", got)
	}

	close(block)
	d.Stop()
}
