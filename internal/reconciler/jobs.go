package reconciler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	billing "github.com/tradecove/billing/internal/billing/domain"
	invoicedomain "github.com/tradecove/billing/internal/invoice/domain"
	"github.com/tradecove/billing/internal/observability/metrics"
	"github.com/tradecove/billing/pkg/errs"
)

var openStates = []invoicedomain.InvoiceState{
	invoicedomain.StateReserved,
	invoicedomain.StatePartiallyCaptured,
}

// expirableStates are the only states the expiry sweep may terminate. A
// partially captured invoice has money on the gateway side and is left to
// the reconcile job.
var expirableStates = []invoicedomain.InvoiceState{
	invoicedomain.StatePending,
	invoicedomain.StateReserved,
}

// ReconcileJob polls the gateway for invoices that have sat in an open state
// past the reconcile age and replays whatever the gateway says happened.
// ApplyCharge dedupes on charge id, so an event seen both live and here lands
// exactly once.
func (r *Reconciler) ReconcileJob(ctx context.Context) error {
	cutoff := r.clock.Now().Add(-r.cfg.ReconcileAge)

	var invoices []invoicedomain.Invoice
	err := r.db.WithContext(ctx).
		Where("state IN ?", openStates).
		Where("updated_at < ?", cutoff).
		Order("updated_at ASC").
		Limit(r.cfg.BatchSize).
		Find(&invoices).Error
	if err != nil {
		return err
	}

	var jobErr error
	for _, invoice := range invoices {
		if err := r.reconcileOne(ctx, invoice); err != nil {
			jobErr = errors.Join(jobErr, err)
		}
	}
	return jobErr
}

func (r *Reconciler) reconcileOne(ctx context.Context, invoice invoicedomain.Invoice) error {
	status, err := r.gateway.GetInvoice(ctx, invoice.InvoiceRef)
	if err != nil {
		return err
	}
	if !status.Found() {
		// The gateway lost or never saw the reservation. Leave it for the
		// expire job.
		r.touch(ctx, invoice.ID)
		return nil
	}

	known := make(map[billing.ChargeID]struct{})
	if records, err := invoice.TransactionList(); err == nil {
		for _, record := range records {
			known[record.ChargeID] = struct{}{}
		}
	}

	changed := false
	for _, tx := range status.Transactions {
		if _, seen := known[tx.ChargeID]; seen {
			continue
		}
		_, err := r.invoiceSvc.ApplyCharge(ctx, invoicedomain.ChargeEvent{
			InvoiceRef: invoice.InvoiceRef,
			ChargeID:   tx.ChargeID,
			Amount:     tx.Amount,
		})
		if err != nil {
			return err
		}
		changed = true
		r.log.Info("missed charge recovered",
			zap.String("invoice_ref", invoice.InvoiceRef.String()),
			zap.String("charge_id", tx.ChargeID.String()),
		)
	}

	if status.Declined && !changed {
		_, err := r.invoiceSvc.Decline(ctx, invoice.ID, "gateway_declined")
		if err != nil && !errs.IsKind(err, errs.Validation) {
			return err
		}
		return nil
	}

	if !changed {
		r.touch(ctx, invoice.ID)
	}
	return nil
}

// touch pushes updated_at forward so an unchanged invoice rotates to the back
// of the scan order.
func (r *Reconciler) touch(ctx context.Context, id billing.SagaID) {
	err := r.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ?", id).
		Update("updated_at", r.clock.Now()).Error
	if err != nil {
		r.log.Warn("touch failed", zap.String("saga_id", id.String()), zap.Error(err))
	}
}

// ExpireJob terminates reservations that ran out without the gateway ever
// recording a charge. Anything the gateway does have a record for is left to
// the reconcile job, so a capture that missed its callback can never be
// expired out from under the customer.
func (r *Reconciler) ExpireJob(ctx context.Context) error {
	deadline := r.clock.Now().Add(-r.cfg.ReservationTTL)

	var invoices []invoicedomain.Invoice
	err := r.db.WithContext(ctx).
		Where("state IN ?", expirableStates).
		Where("price_reserved IS NOT NULL AND price_reserved < ?", deadline).
		Order("price_reserved ASC").
		Limit(r.cfg.BatchSize).
		Find(&invoices).Error
	if err != nil {
		return err
	}

	var jobErr error
	for _, invoice := range invoices {
		status, err := r.gateway.GetInvoice(ctx, invoice.InvoiceRef)
		if err != nil {
			// Unknown gateway truth. Skip until a sweep can see it.
			r.log.Warn("gateway lookup failed, expiry deferred",
				zap.String("invoice_ref", invoice.InvoiceRef.String()),
				zap.Error(err),
			)
			continue
		}
		if status.Found() && len(status.Transactions) > 0 {
			r.log.Info("expiry skipped, gateway holds a charge",
				zap.String("saga_id", invoice.ID.String()),
				zap.Int("transactions", len(status.Transactions)),
			)
			continue
		}

		if _, err := r.invoiceSvc.Expire(ctx, invoice.ID); err != nil {
			// A capture can land between the scan and the lock. Not an error.
			if errs.IsKind(err, errs.Validation) {
				continue
			}
			jobErr = errors.Join(jobErr, err)
			continue
		}
		r.log.Info("invoice expired",
			zap.String("saga_id", invoice.ID.String()),
		)
	}
	return jobErr
}

// SettleJob finalizes captured invoices and credits merchant balances.
func (r *Reconciler) SettleJob(ctx context.Context) error {
	var invoices []invoicedomain.Invoice
	err := r.db.WithContext(ctx).
		Where("state = ?", invoicedomain.StateCaptured).
		Order("updated_at ASC").
		Limit(r.cfg.BatchSize).
		Find(&invoices).Error
	if err != nil {
		return err
	}

	var jobErr error
	for _, invoice := range invoices {
		if _, err := r.invoiceSvc.Settle(ctx, invoice.ID); err != nil {
			jobErr = errors.Join(jobErr, err)
		}
	}
	return jobErr
}

// NotifyJob flushes the saga outbox.
func (r *Reconciler) NotifyJob(ctx context.Context) error {
	delivered, err := r.notifier.DeliverPending(ctx, r.cfg.BatchSize)
	if err != nil {
		metrics.IncSagaDelivery("error")
		return err
	}
	if delivered > 0 {
		metrics.IncSagaDelivery("ok")
		r.log.Info("saga notifications delivered", zap.Int("count", delivered))
	}
	return nil
}
