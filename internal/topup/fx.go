package topup

import (
	"github.com/smallbiznis/creditgate/internal/topup/service"
	"go.uber.org/fx"
)

var Module = fx.Module("topup.service",
	fx.Provide(service.New),
)
