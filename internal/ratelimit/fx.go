package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/creditgate/internal/config"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(provideConsumeLimiter),
)

type limiterParams struct {
	fx.In

	Config  config.Config
	Client  *redis.Client `optional:"true"`
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func provideConsumeLimiter(p limiterParams) *ConsumeLimiter {
	limiter := NewConsumeLimiter(p.Config, p.Client, p.Log)
	if limiter != nil {
		limiter.metrics = p.Metrics
	}
	return limiter
}
