package billinginfo

import (
	"go.uber.org/fx"

	"github.com/tradecove/billing/internal/billinginfo/service"
)

var Module = fx.Module("billinginfo.service",
	fx.Provide(service.NewService),
)
