package merchant

import (
	"go.uber.org/fx"

	"github.com/tradecove/billing/internal/merchant/repository"
)

var Module = fx.Module("merchant.repository",
	fx.Provide(repository.New),
)
