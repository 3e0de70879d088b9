// Package ratelimit paces action requests with a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rescale/assetmover/internal/constants"
	"github.com/rescale/assetmover/internal/logging"
)

// Limiter implements a token bucket rate limiter.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
//
// A nil *Limiter never waits.
type Limiter struct {
	tokens       float64   // Current number of tokens available
	maxTokens    float64   // Maximum bucket capacity
	refillRate   float64   // Tokens added per second
	lastRefill   time.Time // Last time tokens were refilled
	lastWarnTime time.Time // Last time we warned about throttling
	mu           sync.Mutex
	logger       *logging.Logger
}

// New creates a limiter allowing perSecond requests on average and bursts
// of up to burst requests. The bucket starts full.
func New(perSecond float64, burst int, logger *logging.Logger) *Limiter {
	if burst < 1 {
		burst = 1
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Limiter{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: perSecond,
		lastRefill: time.Now(),
		logger:     logger,
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if l.tryAcquire() {
		return nil
	}

	if wait := l.timeUntilNextToken(); wait > constants.RateLimitWarnAfter {
		l.mu.Lock()
		if time.Since(l.lastWarnTime) > constants.RateLimitWarnEvery {
			l.logger.Warn().Dur("wait", wait).Msg("Rate limited, waiting for request capacity")
			l.lastWarnTime = time.Now()
		}
		l.mu.Unlock()
	}

	for {
		timer := time.NewTimer(l.timeUntilNextToken())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if l.tryAcquire() {
			return nil
		}
	}
}

// tryAcquire refills the bucket and takes one token if there is one.
func (l *Limiter) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked(time.Now())
	if l.tokens >= 1.0 {
		l.tokens--
		return true
	}
	return false
}

func (l *Limiter) refillLocked(now time.Time) {
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now
}

// timeUntilNextToken calculates how long to wait until at least one token is available.
func (l *Limiter) timeUntilNextToken() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	needed := 1.0 - l.tokens
	if needed <= 0 {
		return 0
	}
	return time.Duration(needed / l.refillRate * float64(time.Second))
}

// Tokens returns the number of tokens currently available.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked(time.Now())
	return l.tokens
}
