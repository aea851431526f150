// Package reconciler periodically re-derives invoice truth from the payment
// gateway and pushes stalled work forward: missed captures are replayed,
// overdue reservations expired, captured invoices settled, and undelivered
// saga notifications flushed.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradecove/billing/internal/clock"
	"github.com/tradecove/billing/internal/config"
	"github.com/tradecove/billing/internal/gateway"
	invoicedomain "github.com/tradecove/billing/internal/invoice/domain"
	"github.com/tradecove/billing/internal/locks"
	"github.com/tradecove/billing/internal/observability/metrics"
	"github.com/tradecove/billing/internal/saga"
)

const lockKey = "billing:reconciler:leader"

var ErrInvalidConfig = errors.New("reconciler: missing dependencies")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Config     config.Config
	InvoiceSvc invoicedomain.Service
	Gateway    gateway.Client
	Notifier   *saga.Notifier
	Locker     *locks.Locker `optional:"true"`
}

type Reconciler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        config.ReconcilerConfig
	clock      clock.Clock
	invoiceSvc invoicedomain.Service
	gateway    gateway.Client
	notifier   *saga.Notifier
	locker     *locks.Locker
}

func New(p Params) (*Reconciler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.InvoiceSvc == nil || p.Gateway == nil || p.Notifier == nil {
		return nil, ErrInvalidConfig
	}
	return &Reconciler{
		db:         p.DB,
		log:        p.Log.Named("reconciler"),
		cfg:        withDefaults(p.Config.Reconciler),
		clock:      p.Clock,
		invoiceSvc: p.InvoiceSvc,
		gateway:    p.Gateway,
		notifier:   p.Notifier,
		locker:     p.Locker,
	}, nil
}

func withDefaults(c config.ReconcilerConfig) config.ReconcilerConfig {
	if c.RunInterval <= 0 {
		c.RunInterval = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.ReconcileAge <= 0 {
		c.ReconcileAge = 5 * time.Minute
	}
	if c.ReservationTTL <= 0 {
		c.ReservationTTL = 24 * time.Hour
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 2 * time.Minute
	}
	return c
}

func (r *Reconciler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, r.cfg.JobTimeout)
	defer cancel()

	metrics.IncJobRun(name)
	err := fn(ctx)
	metrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		r.log.Warn("job timed out, remainder picked up next pass",
			zap.String("job", name),
			zap.Duration("timeout", r.cfg.JobTimeout),
		)
		return nil
	}

	metrics.IncJobError(name)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes one full sweep. With a locker configured only one replica
// sweeps at a time; losing the lease skips the pass entirely.
func (r *Reconciler) RunOnce(parent context.Context) error {
	if r.locker != nil {
		token, ok, err := r.locker.TryLock(parent, lockKey, r.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("reconciler lock: %w", err)
		}
		if !ok {
			r.log.Debug("another replica holds the sweep lease, skipping")
			return nil
		}
		defer func() {
			if err := r.locker.Release(parent, lockKey, token); err != nil {
				r.log.Warn("sweep lease release failed", zap.Error(err))
			}
		}()
	}

	var err error
	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"reconcile", r.ReconcileJob},
		{"expire", r.ExpireJob},
		{"settle", r.SettleJob},
		{"notify", r.NotifyJob},
	}
	for _, job := range jobs {
		err = errors.Join(err, r.runJob(parent, job.Name, job.Run))
	}
	return err
}

func (r *Reconciler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.log.Warn("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
