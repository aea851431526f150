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
	"github.com/tradecove/billing/internal/server"
	"github.com/tradecove/billing/internal/stores"
	"github.com/tradecove/billing/pkg/db"
)

// The billing service: HTTP API, lifecycle controller, and in-process
// reconciliation sweep. Deployments that want the sweep isolated run
// apps/reconciler instead and start this binary with RECONCILER_ENABLED=false.
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

		server.Module,
	)
	app.Run()
}
