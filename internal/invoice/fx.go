package invoice

import (
	"go.uber.org/fx"

	"github.com/tradecove/billing/internal/invoice/service"
)

// Module wires the invoice lifecycle controller.
var Module = fx.Module("invoice.service",
	fx.Provide(service.NewService),
)
