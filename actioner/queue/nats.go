package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publishes to a NATS subject. With JetStream enabled, each publish waits for the stream's acknowledgement; otherwise the connection is flushed after each message so server errors surface to the caller.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
	logger  *slog.Logger
}

var _ Publisher = (*NATSPublisher)(nil)

func NewNATSPublisher(conn *nats.Conn, subject string, useJetStream bool, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}
	if useJetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			return nil, fmt.Errorf("initializing jetstream: %w", err)
		}
		p.js = js
	}
	return p, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, body []byte) error {
	if p.conn.IsClosed() {
		return ErrClosed
	}
	if p.js != nil {
		ack, err := p.js.Publish(ctx, p.subject, body)
		if err != nil {
			return fmt.Errorf("jetstream publish (subject=%s): %w", p.subject, err)
		}
		p.logger.DebugContext(ctx, "published message", "subject", p.subject, "stream", ack.Stream, "seq", ack.Sequence)
		return nil
	}
	if err := p.conn.Publish(p.subject, body); err != nil {
		return fmt.Errorf("nats publish (subject=%s): %w", p.subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush (subject=%s): %w", p.subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
