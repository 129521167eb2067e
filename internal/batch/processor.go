// Package batch runs queued batches one at a time in arrival order.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is how often WaitDrained checks the queue.
const DefaultPollInterval = 200 * time.Millisecond

// State is the state of a Processor.
type State int

const (
	Idle State = iota
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Handler applies one batch.
type Handler[T any] func(ctx context.Context, batch T) error

// Stats is a snapshot of a Processor's counters.
type Stats struct {
	State     State
	Pending   int
	Enqueued  int
	Succeeded int
	Failed    int
}

// Processed returns the number of batches that finished, successfully or not.
func (s Stats) Processed() int {
	return s.Succeeded + s.Failed
}

// Processor keeps a FIFO queue of batches and applies them with at most one
// handler call in flight. Enqueue never blocks. A failing batch is logged
// and the processor moves on to the next one.
type Processor[T any] struct {
	handler      Handler[T]
	pollInterval time.Duration

	mu    sync.Mutex
	queue []T
	stats Stats
}

// Option configures a Processor.
type Option func(*options)

type options struct {
	pollInterval time.Duration
}

// WithPollInterval sets how often WaitDrained checks for an empty queue.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// NewProcessor creates an idle Processor that applies batches with handler.
func NewProcessor[T any](handler Handler[T], opts ...Option) *Processor[T] {
	o := options{pollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	return &Processor[T]{
		handler:      handler,
		pollInterval: o.pollInterval,
	}
}

// Enqueue appends batch to the queue and starts draining when idle.
func (p *Processor[T]) Enqueue(batch T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queue = append(p.queue, batch)
	p.stats.Enqueued++
	if p.stats.State == Idle {
		p.stats.State = Processing
		go p.drain()
	}
}

func (p *Processor[T]) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.stats.State = Idle
			p.mu.Unlock()
			return
		}
		next := p.queue[0]
		var zero T
		p.queue[0] = zero
		p.queue = p.queue[1:]
		seq := p.stats.Processed() + 1
		p.mu.Unlock()

		err := p.apply(next)

		p.mu.Lock()
		if err != nil {
			p.stats.Failed++
		} else {
			p.stats.Succeeded++
		}
		p.mu.Unlock()

		if err != nil {
			slog.Default().Error("batch failed, continuing with the next one",
				"batch", seq,
				"error", err,
			)
		}
	}
}

func (p *Processor[T]) apply(batch T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.handler(context.Background(), batch)
}

// Stats returns a snapshot of the counters.
func (p *Processor[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Pending = len(p.queue)
	return s
}

// WaitDrained polls until the queue is empty and no batch is running, or ctx is done.
func (p *Processor[T]) WaitDrained(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		if s := p.Stats(); s.State == Idle && s.Pending == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %d pending batches: %w", p.Stats().Pending, ctx.Err())
		case <-ticker.C:
		}
	}
}
