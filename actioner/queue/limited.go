package queue

import (
	"context"

	"golang.org/x/time/rate"
)

// Wraps a publisher with a shared token-bucket rate limit. Publish blocks (respecting ctx) until a token is available.
type LimitedPublisher struct {
	Inner   Publisher
	Limiter *rate.Limiter
}

var _ Publisher = (*LimitedPublisher)(nil)

func NewLimitedPublisher(inner Publisher, perSecond float64, burst int) *LimitedPublisher {
	if burst < 1 {
		burst = 1
	}
	return &LimitedPublisher{
		Inner:   inner,
		Limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (p *LimitedPublisher) Publish(ctx context.Context, body []byte) error {
	if err := p.Limiter.Wait(ctx); err != nil {
		return err
	}
	return p.Inner.Publish(ctx, body)
}

func (p *LimitedPublisher) Close() error {
	return p.Inner.Close()
}
