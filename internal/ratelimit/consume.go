package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/creditgate/internal/config"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	keyConsumeAccount = "creditgate:consume:%s"
	endpointConsume   = "consume"
)

// ConsumeLimiter throttles metered consumption per account. A nil limiter
// allows everything.
type ConsumeLimiter struct {
	bucket  *TokenBucket
	log     *zap.Logger
	metrics *metrics.Metrics
	rate    float64
	burst   int
}

// NewConsumeLimiter returns nil when Redis or the limit is not configured.
func NewConsumeLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *ConsumeLimiter {
	limit := cfg.RateLimit
	if client == nil || limit.ConsumeRate <= 0 || limit.ConsumeBurst <= 0 {
		return nil
	}
	return &ConsumeLimiter{
		bucket: NewTokenBucket(client),
		log:    log.Named("ratelimit"),
		rate:   limit.ConsumeRate,
		burst:  limit.ConsumeBurst,
	}
}

func ConsumeKey(accountID string) string {
	return fmt.Sprintf(keyConsumeAccount, strings.TrimSpace(accountID))
}

// AllowAccount fails open: a Redis error is logged and the request allowed.
func (l *ConsumeLimiter) AllowAccount(ctx context.Context, accountID string) Result {
	if l == nil {
		return Result{Allowed: true}
	}
	res, err := l.bucket.Allow(ctx, ConsumeKey(accountID), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed", zap.String("account_id", accountID), zap.Error(err))
		return Result{Allowed: true, Limit: l.burst}
	}
	if res.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, endpointConsume)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, endpointConsume, "exhausted")
	}
	return res
}
