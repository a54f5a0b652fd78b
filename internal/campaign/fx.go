package campaign

import (
	"github.com/smallbiznis/creditgate/internal/campaign/repository"
	"github.com/smallbiznis/creditgate/internal/campaign/service"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
