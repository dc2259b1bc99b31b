package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrQueueFull = errors.New("pipeline: queue full")
	ErrStopped   = errors.New("pipeline: dispatcher stopped")
)

// Dispatcher owns the bounded work queue and the fixed worker pool that
// consumes it. Webhook handlers enqueue conversation ids and return
// immediately; workers run the processor in the background.
//
// Crash recovery policy: none. Queued and in-flight work is lost on process
// exit; records stuck in a non-terminal status after a restart are visible
// through the status query. This is an explicit decision, not an accident.
type Dispatcher struct {
	proc    *Processor
	queue   chan string
	workers int
	log     *slog.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(proc *Processor, workers, queueSize int, log *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		proc:    proc,
		queue:   make(chan string, queueSize),
		workers: workers,
		log:     log,
	}
}

// Start launches the worker pool. ctx cancellation aborts in-flight pipeline
// steps; queued ids are still drained so their runs terminate quickly with a
// recorded failure rather than vanishing silently.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(worker int) {
			defer d.wg.Done()
			for id := range d.queue {
				d.log.Debug("pipeline dequeued", "worker", worker, "conversation_id", id)
				d.proc.Process(ctx, id)
			}
		}(i)
	}
}

// Enqueue hands a conversation to the worker pool without blocking.
func (d *Dispatcher) Enqueue(conversationID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queue <- conversationID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Depth reports the number of queued, not-yet-started conversations.
func (d *Dispatcher) Depth() int {
	return len(d.queue)
}

// Stop closes the queue and waits for workers to drain it.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}
