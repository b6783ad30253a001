package prepay

import (
	"github.com/smallbiznis/backoffice/internal/prepay/repository"
	"github.com/smallbiznis/backoffice/internal/prepay/service"
	"go.uber.org/fx"
)

var Module = fx.Module("prepay.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
