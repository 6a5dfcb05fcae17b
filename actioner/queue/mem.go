package queue

import (
	"context"
	"sync"
)

// In-process queue, for tests and local development. Safe for concurrent use.
type MemPublisher struct {
	Name string

	// if non-nil, called before each publish; a non-nil return fails that publish
	FailFunc func(body []byte) error

	lk       sync.Mutex
	messages [][]byte
	closed   bool
}

var _ Publisher = (*MemPublisher)(nil)

func NewMemPublisher(name string) *MemPublisher {
	return &MemPublisher{Name: name}
}

func (p *MemPublisher) Publish(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.lk.Lock()
	defer p.lk.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.FailFunc != nil {
		if err := p.FailFunc(body); err != nil {
			return err
		}
	}
	buf := make([]byte, len(body))
	copy(buf, body)
	p.messages = append(p.messages, buf)
	return nil
}

// Copy of all message bodies published so far, in publish order.
func (p *MemPublisher) Messages() [][]byte {
	p.lk.Lock()
	defer p.lk.Unlock()
	out := make([][]byte, len(p.messages))
	copy(out, p.messages)
	return out
}

func (p *MemPublisher) Len() int {
	p.lk.Lock()
	defer p.lk.Unlock()
	return len(p.messages)
}

func (p *MemPublisher) Close() error {
	p.lk.Lock()
	defer p.lk.Unlock()
	p.closed = true
	return nil
}
