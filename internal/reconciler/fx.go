package reconciler

import (
	"context"

	"go.uber.org/fx"

	"github.com/tradecove/billing/internal/config"
)

var Module = fx.Module("reconciler",
	fx.Provide(New),
	fx.Invoke(runReconciler),
)

func runReconciler(lc fx.Lifecycle, cfg config.Config, r *Reconciler) {
	if !cfg.Reconciler.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go r.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
