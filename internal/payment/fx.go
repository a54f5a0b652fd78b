package payment

import (
	"errors"

	"github.com/smallbiznis/creditgate/internal/config"
	"github.com/smallbiznis/creditgate/internal/payment/adapters"
	"github.com/smallbiznis/creditgate/internal/payment/adapters/stripe"
	"github.com/smallbiznis/creditgate/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(stripe.NewFactory())
	}),
	fx.Provide(NewProcessor),
)

// NewProcessor builds the configured processor. A missing provider or secret
// yields a nil processor, which disables automatic top-ups without failing
// startup.
func NewProcessor(cfg config.Config, registry *adapters.Registry, log *zap.Logger) (domain.Processor, error) {
	log = log.Named("payment")
	if cfg.Payment.Provider == "" || cfg.Payment.SecretKey == "" {
		log.Info("payment processor not configured, auto top-up disabled")
		return nil, nil
	}
	processor, err := registry.NewProcessor(cfg.Payment.Provider, domain.ProcessorConfig{
		SecretKey: cfg.Payment.SecretKey,
		APIBase:   cfg.Payment.APIBase,
		AccountID: cfg.Payment.AccountID,
	})
	if errors.Is(err, domain.ErrProviderNotFound) {
		log.Warn("unknown payment provider, auto top-up disabled", zap.String("provider", cfg.Payment.Provider))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Info("payment processor configured", zap.String("provider", processor.Provider()))
	return processor, nil
}
