package contract

import (
	"github.com/smallbiznis/backoffice/internal/contract/repository"
	"github.com/smallbiznis/backoffice/internal/contract/service"
	"go.uber.org/fx"
)

var Module = fx.Module("contract.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
