package currency

import (
	"github.com/smallbiznis/backoffice/internal/currency/repository"
	"github.com/smallbiznis/backoffice/internal/currency/service"
	"go.uber.org/fx"
)

var Module = fx.Module("currency.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
