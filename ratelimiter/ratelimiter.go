// Package ratelimiter paces calls to the model service so a run stays inside
// the account's requests-per-minute and tokens-per-minute quotas.
package ratelimiter

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	DefaultBucketSize = 10
	DefaultRefillRate = time.Second
)

// ErrRateLimiterStopped is returned by Wait and WaitN once Stop has been called.
var ErrRateLimiterStopped = errors.New("ratelimiter: stopped")

// TokenBucket hands out tokens from a buffered channel that a background
// goroutine refills one token per refill interval.
type TokenBucket struct {
	bucketSize int
	refillRate time.Duration
	tokens     chan struct{}
	ticker     *time.Ticker
	stopCh     chan struct{}
	mu         sync.RWMutex
	stopped    bool
}

// NewTokenBucket returns a full bucket holding bucketSize tokens.
func NewTokenBucket(bucketSize int, refillRate time.Duration) *TokenBucket {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}
	if refillRate <= 0 {
		refillRate = DefaultRefillRate
	}

	tb := &TokenBucket{
		bucketSize: bucketSize,
		refillRate: refillRate,
		tokens:     make(chan struct{}, bucketSize),
		ticker:     time.NewTicker(refillRate),
		stopCh:     make(chan struct{}),
	}

	for i := 0; i < bucketSize; i++ {
		tb.tokens <- struct{}{}
	}

	go tb.refill()

	return tb
}

// PerMinute returns a bucket that allows n events per minute with bursts of n.
func PerMinute(n int) *TokenBucket {
	if n <= 0 {
		return NewTokenBucket(0, 0)
	}
	return NewTokenBucket(n, time.Minute/time.Duration(n))
}

func (tb *TokenBucket) refill() {
	for {
		select {
		case <-tb.ticker.C:
			select {
			case tb.tokens <- struct{}{}:
			default:
			}
		case <-tb.stopCh:
			return
		}
	}
}

func (tb *TokenBucket) isStopped() bool {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	return tb.stopped
}

// Allow takes one token if one is immediately available.
func (tb *TokenBucket) Allow() bool {
	if tb.isStopped() {
		return false
	}

	select {
	case <-tb.tokens:
		return true
	default:
		return false
	}
}

// Wait blocks until one token is available.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.WaitN(ctx, 1)
}

// WaitN blocks until n tokens have been taken. n is clamped to the bucket
// size so an oversized request cannot wait forever. Tokens already taken are
// not returned when ctx ends early.
func (tb *TokenBucket) WaitN(ctx context.Context, n int) error {
	if tb.isStopped() {
		return ErrRateLimiterStopped
	}
	if n > tb.bucketSize {
		n = tb.bucketSize
	}

	for i := 0; i < n; i++ {
		select {
		case <-tb.tokens:
		case <-tb.stopCh:
			return ErrRateLimiterStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stop halts refilling and makes further waits fail. Safe to call twice.
func (tb *TokenBucket) Stop() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.stopped {
		return
	}

	tb.stopped = true
	tb.ticker.Stop()
	close(tb.stopCh)
}

func (tb *TokenBucket) AvailableTokens() int {
	return len(tb.tokens)
}

func (tb *TokenBucket) BucketSize() int {
	return tb.bucketSize
}

func (tb *TokenBucket) RefillRate() time.Duration {
	return tb.refillRate
}
