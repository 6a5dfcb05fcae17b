// Outbound and inbound queue transports for the action evaluator.
//
// Outbound queues are addressed by a "locator" string (see `Open`), which selects the transport: redis streams, NATS, or an in-process memory queue. Delivery is at-least-once; consumers must tolerate duplicates.
package queue

import (
	"context"
	"errors"
)

var (
	ErrInvalidLocator = errors.New("invalid queue locator")
	ErrClosed         = errors.New("queue publisher closed")
)

// Publishes opaque message bodies on to a single destination queue.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
	Close() error
}
