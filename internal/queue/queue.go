package queue

import "context"

const (
	// WorkQueue carries batch processing jobs from the API to the worker.
	WorkQueue = "batches"
	// DLQ receives messages the worker rejected as unparseable.
	DLQ = "dlq.batches"
)

// Publisher publishes batch messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg BatchMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg BatchMessage) error

// Consumer consumes batch messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
