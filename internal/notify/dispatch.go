package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// taskTimeout bounds a single best-effort task.
const taskTimeout = 30 * time.Second

type task struct {
	name string
	run  func(ctx context.Context) error
}

// Dispatcher runs best-effort side effects (push alerts, owner texts,
// recording mirroring) off the webhook request path. Submit never blocks:
// when the queue is full the task is dropped and logged, because a late
// push alert is worth less than a late webhook response.
type Dispatcher struct {
	queue   chan task
	logger  *slog.Logger
	wg      sync.WaitGroup
	onDrop  func()
	started bool
}

// NewDispatcher creates a Dispatcher with the given worker count and queue
// size. onDrop is invoked for every dropped task and may be nil.
func NewDispatcher(workers, queueSize int, logger *slog.Logger, onDrop func()) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	d := &Dispatcher{
		queue:  make(chan task, queueSize),
		logger: logger.With("component", "dispatcher"),
		onDrop: onDrop,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	d.started = true
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		if err := t.run(ctx); err != nil {
			d.logger.Warn("best-effort task failed", "task", t.name, "error", err)
		}
		cancel()
	}
}

// Submit enqueues a best-effort task. It reports false when the queue is
// full and the task was dropped.
func (d *Dispatcher) Submit(name string, run func(ctx context.Context) error) bool {
	select {
	case d.queue <- task{name: name, run: run}:
		return true
	default:
		d.logger.Warn("dispatch queue full, dropping task", "task", name)
		if d.onDrop != nil {
			d.onDrop()
		}
		return false
	}
}

// Stop drains the queue and waits for in-flight tasks to finish.
func (d *Dispatcher) Stop() {
	close(d.queue)
	d.wg.Wait()
}
