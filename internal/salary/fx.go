package salary

import (
	"github.com/smallbiznis/backoffice/internal/salary/repository"
	"github.com/smallbiznis/backoffice/internal/salary/service"
	"go.uber.org/fx"
)

var Module = fx.Module("salary.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
