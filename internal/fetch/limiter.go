package fetch

import (
	"context"
	"fmt"
	"time"
)

// Limiter gates outbound provider calls.
type Limiter interface {
	Wait(ctx context.Context) error
}

// TokenBucket releases a fixed number of tokens per second, with a burst
// equal to one second's worth.
type TokenBucket struct {
	ticker *time.Ticker
	tokens chan struct{}
	done   chan struct{}
}

// NewTokenBucket returns a limiter releasing rps tokens per second.
func NewTokenBucket(rps float64) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	tb := &TokenBucket{
		ticker: time.NewTicker(time.Duration(float64(time.Second) / rps)),
		tokens: make(chan struct{}, burst),
		done:   make(chan struct{}),
	}
	tb.tokens <- struct{}{}
	go tb.run()
	return tb
}

func (t *TokenBucket) run() {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			select {
			case t.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Wait blocks until a token is available or ctx is done.
func (t *TokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate wait canceled: %w", ctx.Err())
	case <-t.tokens:
		return nil
	}
}

// Stop releases the ticker goroutine.
func (t *TokenBucket) Stop() {
	t.ticker.Stop()
	close(t.done)
}

var _ Limiter = (*TokenBucket)(nil)
