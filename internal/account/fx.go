package account

import (
	"github.com/smallbiznis/creditgate/internal/account/domain"
	"github.com/smallbiznis/creditgate/internal/account/repository"
	"github.com/smallbiznis/creditgate/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.EmailResolver { return svc }),
)
