package tasks

import (
	"context"
	"sync"
)

// Coalescer is a de-duplicating work queue. At most one item is pending per
// topic; submitting to a topic that already has a pending item replaces the
// stale one. Slow consumers therefore never cause unbounded queueing, they
// just skip intermediate updates.
type Coalescer struct {
	mu      sync.Mutex
	pending map[string]func(ctx context.Context)
	order   []string
	wake    chan struct{}
}

// NewCoalescer returns an empty queue. Run must be started for submitted
// work to execute.
func NewCoalescer() *Coalescer {
	return &Coalescer{
		pending: make(map[string]func(ctx context.Context)),
		wake:    make(chan struct{}, 1),
	}
}

// Submit queues work under the given topic, replacing any pending work for
// the same topic. Safe for concurrent use.
func (c *Coalescer) Submit(topic string, work func(ctx context.Context)) {
	c.mu.Lock()
	if _, exists := c.pending[topic]; !exists {
		c.order = append(c.order, topic)
	}
	c.pending[topic] = work
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// take pops the oldest pending topic's work, or nil when the queue is empty.
func (c *Coalescer) take() func(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.order) == 0 {
		return nil
	}
	topic := c.order[0]
	c.order = c.order[1:]
	work := c.pending[topic]
	delete(c.pending, topic)
	return work
}

// Run executes pending work until ctx is cancelled and returns the context
// error.
func (c *Coalescer) Run(ctx context.Context) error {
	for {
		work := c.take()
		if work == nil {
			select {
			case <-c.wake:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		work(ctx)
	}
}
