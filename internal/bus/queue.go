package bus

import (
	"context"
	"sync"
	"time"

	"depthScope/internal/exception"
	"depthScope/internal/model"
)

// Publisher is the producer side of the bus.
type Publisher interface {
	Publish(ctx context.Context, ev model.Event) error
}

// Observer receives queue accounting callbacks.
type Observer interface {
	Published(kind model.Kind)
	Dropped(kind model.Kind)
}

// Queue is a bounded FIFO shared by many producers and one consumer.
// Events from a single producer are delivered in publish order.
type Queue struct {
	ch       chan model.Event
	done     chan struct{}
	once     sync.Once
	timeout  time.Duration
	observer Observer
}

// Option configures a Queue.
type Option func(*Queue)

// WithPublishTimeout bounds how long Publish blocks on a full queue.
func WithPublishTimeout(d time.Duration) Option {
	return func(q *Queue) { q.timeout = d }
}

// WithObserver attaches queue accounting.
func WithObserver(o Observer) Option {
	return func(q *Queue) { q.observer = o }
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int, opts ...Option) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue{
		ch:      make(chan model.Event, capacity),
		done:    make(chan struct{}),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Publish enqueues an event, blocking while the queue is full. It gives up
// with ErrQueueFull once the publish timeout elapses.
func (q *Queue) Publish(ctx context.Context, ev model.Event) error {
	select {
	case <-q.done:
		return exception.ErrQueueClosed
	default:
	}

	select {
	case q.ch <- ev:
		q.published(ev)
		return nil
	default:
	}

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case q.ch <- ev:
		q.published(ev)
		return nil
	case <-q.done:
		return exception.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if q.observer != nil {
			q.observer.Dropped(ev.Kind())
		}
		return exception.ErrQueueFull
	}
}

// Next blocks until an event is available, the queue is closed, or ctx is done.
func (q *Queue) Next(ctx context.Context) (model.Event, error) {
	select {
	case ev := <-q.ch:
		return ev, nil
	case <-q.done:
		return nil, exception.ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(model.Event)) {
	for {
		ev, err := q.Next(ctx)
		if err != nil {
			return
		}
		handler(ev)
	}
}

// Len reports the number of buffered events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue. Publishers and the consumer are released.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}

func (q *Queue) published(ev model.Event) {
	if q.observer != nil {
		q.observer.Published(ev.Kind())
	}
}
