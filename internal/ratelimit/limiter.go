package ratelimit

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyValuationUser = "valuation:rate:"

// ValuationLimiter caps how often one user may submit valuations.
type ValuationLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewValuationLimiter returns nil when redis is not configured or the limit is disabled.
func NewValuationLimiter(client *redis.Client, perMinute float64, burst int) *ValuationLimiter {
	if client == nil || perMinute <= 0 || burst <= 0 {
		return nil
	}
	return &ValuationLimiter{
		bucket: NewTokenBucket(client),
		rate:   perMinute / 60,
		burst:  burst,
	}
}

func (l *ValuationLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow reports whether userID may submit now and, if not, how long to wait.
func (l *ValuationLimiter) Allow(ctx context.Context, userID string) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}
	res, err := l.bucket.Allow(ctx, keyValuationUser+strings.TrimSpace(userID), l.rate, l.burst)
	if err != nil {
		return true, 0, err
	}
	return res.Allowed, res.RetryAfter, nil
}
