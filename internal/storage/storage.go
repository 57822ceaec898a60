package storage

import (
	"context"

	"depthScope/internal/model"
)

// BookSink receives every aggregated book the aggregator publishes.
type BookSink interface {
	PutBook(ctx context.Context, book model.AggregatedBook) error
}

// EventSink receives raw normalized events.
type EventSink interface {
	PutEvent(ctx context.Context, ev model.Event) error
}
