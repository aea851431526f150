package main

import (
	"go.uber.org/fx"

	"github.com/tradecove/billing/internal/billinginfo"
	"github.com/tradecove/billing/internal/clock"
	"github.com/tradecove/billing/internal/config"
	"github.com/tradecove/billing/internal/gateway"
	"github.com/tradecove/billing/internal/invoice"
	"github.com/tradecove/billing/internal/locks"
	"github.com/tradecove/billing/internal/logger"
	"github.com/tradecove/billing/internal/merchant"
	"github.com/tradecove/billing/internal/reconciler"
	"github.com/tradecove/billing/internal/saga"
	"github.com/tradecove/billing/internal/stores"
	"github.com/tradecove/billing/pkg/db"
)

// Standalone reconciliation worker. Runs the same sweep as the main binary
// but carries no HTTP surface, for deployments that scale the API and the
// sweeps independently. The redis lease keeps concurrent workers from
// double-sweeping.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		db.Module,
		locks.Module,

		gateway.Module,
		stores.Module,
		saga.Module,
		billinginfo.Module,
		merchant.Module,
		invoice.Module,
		reconciler.Module,
	)
	app.Run()
}
