package credit

import (
	"github.com/smallbiznis/creditgate/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit.service",
	fx.Provide(service.NewStore),
	fx.Provide(service.NewGate),
)
