// Package throttle rate-limits one-time-code requests through redis.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter errors.
var (
	// ErrRateLimited means the phone number must wait before requesting another code.
	ErrRateLimited = errors.New("code request rate limited")
	// ErrRedisUnavailable means the throttle backend could not be reached.
	ErrRedisUnavailable = errors.New("throttle redis unavailable")
)

// Defaults for the code request window.
const (
	// DefaultWindow is the counting window per phone number.
	DefaultWindow = 15 * time.Minute
	// DefaultMaxRequests is the request budget per window.
	DefaultMaxRequests = 3
)

// CodeLimiter caps one-time-code requests per phone number per window.
type CodeLimiter struct {
	redis       *redis.Client
	window      time.Duration
	maxRequests int
}

// NewCodeLimiter constructs a CodeLimiter.
func NewCodeLimiter(client *redis.Client, window time.Duration, maxRequests int) *CodeLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	return &CodeLimiter{redis: client, window: window, maxRequests: maxRequests}
}

// Allow counts one request against the phone number's window.
func (l *CodeLimiter) Allow(ctx context.Context, phone string) error {
	key := codeRequestKey(phone)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if errExpire := l.redis.Expire(ctx, key, l.window).Err(); errExpire != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, errExpire)
		}
	}

	if count > int64(l.maxRequests) {
		return ErrRateLimited
	}
	return nil
}

// codeRequestKey builds the redis key for a phone number's window.
func codeRequestKey(phone string) string {
	return "otc:req:" + phone
}
