// Package service implements the invoice lifecycle controller. Every state
// transition runs inside one database transaction together with its side
// effects (order statuses, merchant credits, saga outbox rows), so a crash
// can never leave the invoice and its consequences disagreeing.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	billing "github.com/tradecove/billing/internal/billing/domain"
	billinginfodomain "github.com/tradecove/billing/internal/billinginfo/domain"
	"github.com/tradecove/billing/internal/clock"
	"github.com/tradecove/billing/internal/gateway"
	invoicedomain "github.com/tradecove/billing/internal/invoice/domain"
	merchantdomain "github.com/tradecove/billing/internal/merchant/domain"
	"github.com/tradecove/billing/internal/observability/metrics"
	"github.com/tradecove/billing/internal/saga"
	"github.com/tradecove/billing/pkg/db"
	"github.com/tradecove/billing/pkg/errs"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Gateway   gateway.Client
	Billing   billinginfodomain.Service
	Merchants merchantdomain.Repository
	Notifier  *saga.Notifier
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	gateway   gateway.Client
	billing   billinginfodomain.Service
	merchants merchantdomain.Repository
	notifier  *saga.Notifier
}

var _ invoicedomain.Service = (*Service)(nil)

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invoice.service"),
		clock:     p.Clock,
		gateway:   p.Gateway,
		billing:   p.Billing,
		merchants: p.Merchants,
		notifier:  p.Notifier,
	}
}

// Create aggregates the saga's orders into one invoice and reserves it with
// the gateway. Replaying a saga id returns the invoice created by the first
// call. A store with no routable billing info fails the whole invoice into
// the declined state, with payment_failed propagated for every order.
func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoice) (invoicedomain.Invoice, error) {
	const op = "invoice.Create"

	if err := s.validateCreate(req); err != nil {
		return invoicedomain.Invoice{}, err
	}

	total := billing.Amount(0)
	for _, order := range req.Orders {
		total = total.CheckedAdd(order.Price)
	}

	withWallet := false
	routeErr := error(nil)
	for _, order := range req.Orders {
		route, err := s.billing.Route(ctx, order.StoreID)
		if err != nil {
			if errs.IsKind(err, errs.Validation) {
				routeErr = err
				break
			}
			return invoicedomain.Invoice{}, err
		}
		if route.RequiresWallet() {
			withWallet = true
		}
	}

	now := s.clock.Now()
	invoice := invoicedomain.Invoice{
		ID:         req.SagaID,
		InvoiceRef: billing.NewInvoiceID(),
		Amount:     total,
		Currency:   req.Currency,
		State:      invoicedomain.StatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	invoice.Transactions, _ = invoicedomain.EncodeTransactions(nil)

	orderStatus := invoicedomain.OrderStatusNew
	if routeErr != nil {
		invoice.State = invoicedomain.StateDeclined
		orderStatus = invoicedomain.OrderStatusPaymentFailed
		s.log.Warn("invoice declined at creation, store not routable",
			zap.String("saga_id", req.SagaID.String()),
			zap.Error(routeErr),
		)
	} else {
		reservation, err := s.gateway.Reserve(ctx, gateway.ReserveRequest{
			InvoiceRef: invoice.InvoiceRef,
			Amount:     total,
			Currency:   req.Currency,
			WithWallet: withWallet,
		})
		if err != nil {
			return invoicedomain.Invoice{}, errs.E(op, errs.Internal, err,
				"saga_id", req.SagaID.String())
		}
		reservedAt := reservation.ReservedAt
		if reservedAt.IsZero() {
			reservedAt = now
		}
		invoice.State = invoicedomain.StateReserved
		invoice.PriceReserved = &reservedAt
		if reservation.Wallet != "" {
			wallet := reservation.Wallet
			invoice.Wallet = &wallet
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&invoice).Error; err != nil {
			return err
		}
		for _, order := range req.Orders {
			row := invoicedomain.OrderInfo{
				ID:         uuid.NewString(),
				OrderID:    order.ID,
				StoreID:    order.StoreID,
				CustomerID: req.CustomerID,
				SagaID:     req.SagaID,
				Price:      order.Price,
				Currency:   order.Currency,
				Status:     orderStatus,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		if invoice.State == invoicedomain.StateDeclined {
			return s.notifier.Enqueue(tx, orderUpdates(req.CustomerID, req.Orders, invoicedomain.OrderStatusPaymentFailed))
		}
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Saga retried an already-created invoice.
			return s.GetByID(ctx, req.SagaID)
		}
		return invoicedomain.Invoice{}, errs.E(op, errs.Internal, err,
			"saga_id", req.SagaID.String())
	}

	metrics.IncTransition(string(invoice.State))
	s.log.Info("invoice created",
		zap.String("saga_id", invoice.ID.String()),
		zap.String("invoice_ref", invoice.InvoiceRef.String()),
		zap.String("state", string(invoice.State)),
		zap.Int64("amount", invoice.Amount.Int64()),
		zap.Int("orders", len(req.Orders)),
	)
	return invoice, nil
}

func (s *Service) validateCreate(req invoicedomain.CreateInvoice) error {
	const op = "invoice.Create"
	if req.SagaID.IsZero() {
		return errs.Validationf(op, "saga_id is required")
	}
	if len(req.Orders) == 0 {
		return errs.E(op, errs.Validation, invoicedomain.ErrEmptyOrders,
			"saga_id", req.SagaID.String())
	}
	if strings.TrimSpace(req.PaymentToken) == "" {
		return errs.Validationf(op, "payment_token is required")
	}
	for _, order := range req.Orders {
		if order.ID.IsZero() {
			return errs.Validationf(op, "order id is required")
		}
		if order.Price <= 0 {
			return errs.E(op, errs.Validation, nil,
				"order_id", order.ID.String(),
				"price", order.Price.Int64())
		}
		if order.Currency != req.Currency {
			return errs.E(op, errs.Validation, invoicedomain.ErrCurrencyMismatch,
				"order_id", order.ID.String(),
				"order_currency", order.Currency.String(),
				"invoice_currency", req.Currency.String())
		}
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, id billing.SagaID) (invoicedomain.Invoice, error) {
	const op = "invoice.GetByID"
	var invoice invoicedomain.Invoice
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error
	if err != nil {
		return invoicedomain.Invoice{}, notFoundOr(op, err, "saga_id", id.String())
	}
	return invoice, nil
}

func (s *Service) GetByOrderID(ctx context.Context, orderID billing.OrderID) (invoicedomain.Invoice, error) {
	const op = "invoice.GetByOrderID"
	var info invoicedomain.OrderInfo
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&info).Error
	if err != nil {
		return invoicedomain.Invoice{}, notFoundOr(op, err, "order_id", orderID.String())
	}
	return s.GetByID(ctx, info.SagaID)
}

func (s *Service) OrderIDs(ctx context.Context, id billing.SagaID) ([]billing.OrderID, error) {
	const op = "invoice.OrderIDs"
	var infos []invoicedomain.OrderInfo
	err := s.db.WithContext(ctx).Where("saga_id = ?", id).Find(&infos).Error
	if err != nil {
		return nil, errs.E(op, errs.Internal, err, "saga_id", id.String())
	}
	ids := make([]billing.OrderID, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.OrderID)
	}
	return ids, nil
}

// attachFees records the processing fee for one freshly captured intent,
// under the capture's transaction. Fee rules are keyed by currency; a
// currency with no rule carries no fee.
func (s *Service) attachFees(tx *gorm.DB, intent invoicedomain.PaymentIntent) error {
	var rules []invoicedomain.Fee
	if err := tx.Where("currency = ?", intent.Currency).Find(&rules).Error; err != nil {
		return err
	}
	for _, rule := range rules {
		amount := rule.Apply(intent.Amount)
		if amount <= 0 {
			continue
		}
		row := invoicedomain.PaymentIntentFee{
			ID:              uuid.NewString(),
			PaymentIntentID: intent.ID,
			FeeID:           rule.ID,
			Amount:          amount,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// FeesByOrderID resolves the order's invoice and lists the fees attributed
// to its captures.
func (s *Service) FeesByOrderID(ctx context.Context, orderID billing.OrderID) ([]invoicedomain.AppliedFee, error) {
	const op = "invoice.FeesByOrderID"

	invoice, err := s.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var joins []invoicedomain.PaymentIntentInvoice
	err = s.db.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Find(&joins).Error
	if err != nil {
		return nil, errs.E(op, errs.Internal, err, "saga_id", invoice.ID.String())
	}
	if len(joins) == 0 {
		return nil, nil
	}

	intentIDs := make([]string, 0, len(joins))
	for _, join := range joins {
		intentIDs = append(intentIDs, join.PaymentIntentID)
	}

	var intents []invoicedomain.PaymentIntent
	err = s.db.WithContext(ctx).Where("id IN ?", intentIDs).Find(&intents).Error
	if err != nil {
		return nil, errs.E(op, errs.Internal, err, "saga_id", invoice.ID.String())
	}
	chargeByIntent := make(map[string]billing.ChargeID, len(intents))
	for _, intent := range intents {
		chargeByIntent[intent.ID] = intent.ChargeID
	}

	var feeRows []invoicedomain.PaymentIntentFee
	err = s.db.WithContext(ctx).Where("payment_intent_id IN ?", intentIDs).Find(&feeRows).Error
	if err != nil {
		return nil, errs.E(op, errs.Internal, err, "saga_id", invoice.ID.String())
	}
	if len(feeRows) == 0 {
		return nil, nil
	}

	ruleIDs := make([]string, 0, len(feeRows))
	for _, row := range feeRows {
		ruleIDs = append(ruleIDs, row.FeeID)
	}
	var rules []invoicedomain.Fee
	err = s.db.WithContext(ctx).Where("id IN ?", ruleIDs).Find(&rules).Error
	if err != nil {
		return nil, errs.E(op, errs.Internal, err, "saga_id", invoice.ID.String())
	}
	ruleByID := make(map[string]invoicedomain.Fee, len(rules))
	for _, rule := range rules {
		ruleByID[rule.ID] = rule
	}

	applied := make([]invoicedomain.AppliedFee, 0, len(feeRows))
	for _, row := range feeRows {
		applied = append(applied, invoicedomain.AppliedFee{
			ChargeID: chargeByIntent[row.PaymentIntentID],
			FeeID:    row.FeeID,
			Rule:     ruleByID[row.FeeID].Rule,
			Amount:   row.Amount,
			Currency: invoice.Currency,
		})
	}
	return applied, nil
}

// Pay asks the gateway to capture the invoice's outstanding balance and
// applies the classified result. Permanent failures decline the invoice;
// transient failures leave it untouched for a later retry or for the
// reconciliation sweep. Attempt numbering keeps the gateway idempotency key
// stable across network retries of the same logical attempt.
func (s *Service) Pay(ctx context.Context, id billing.SagaID, paymentToken string) (invoicedomain.Invoice, error) {
	const op = "invoice.Pay"

	if strings.TrimSpace(paymentToken) == "" {
		return invoicedomain.Invoice{}, errs.Validationf(op, "payment_token is required")
	}
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.State != invoicedomain.StateReserved && invoice.State != invoicedomain.StatePartiallyCaptured {
		return invoicedomain.Invoice{}, errs.E(op, errs.Validation, invoicedomain.ErrNotPayable,
			"saga_id", id.String(),
			"state", string(invoice.State))
	}

	records, err := invoice.TransactionList()
	if err != nil {
		return invoicedomain.Invoice{}, errs.E(op, errs.Internal, err, "saga_id", id.String())
	}
	outstanding := invoice.Amount - invoice.AmountCaptured
	result, err := s.gateway.Capture(ctx, gateway.CaptureRequest{
		InvoiceRef:   invoice.InvoiceRef,
		Amount:       outstanding,
		Currency:     invoice.Currency,
		PaymentToken: paymentToken,
		Attempt:      len(records) + 1,
	})
	if err != nil {
		return invoicedomain.Invoice{}, errs.E(op, errs.Internal, err, "saga_id", id.String())
	}

	switch result.Status {
	case gateway.ChargeSucceeded:
		return s.ApplyCharge(ctx, invoicedomain.ChargeEvent{
			InvoiceRef: invoice.InvoiceRef,
			ChargeID:   result.ChargeID,
			Amount:     result.CapturedAmount,
		})
	case gateway.ChargePermanentFailure:
		metrics.IncCapture("declined")
		return s.Decline(ctx, id, result.Reason)
	default:
		metrics.IncCapture("transient_failure")
		return invoicedomain.Invoice{}, errs.E(op, errs.Internal, invoicedomain.ErrGatewayDown,
			"saga_id", id.String(),
			"reason", result.Reason)
	}
}

// ApplyCharge records one gateway capture against the invoice. The charge id
// is the idempotency key: a replayed event hits the unique payment_intents
// index and returns the current invoice unchanged. amount_captured only ever
// grows and never exceeds the invoice amount.
func (s *Service) ApplyCharge(ctx context.Context, event invoicedomain.ChargeEvent) (invoicedomain.Invoice, error) {
	const op = "invoice.ApplyCharge"

	if event.Declined {
		invoice, err := s.getByRef(ctx, event.InvoiceRef)
		if err != nil {
			return invoicedomain.Invoice{}, err
		}
		return s.Decline(ctx, invoice.ID, event.Reason)
	}
	if event.ChargeID == "" {
		return invoicedomain.Invoice{}, errs.Validationf(op, "charge_id is required")
	}
	if event.Amount <= 0 {
		return invoicedomain.Invoice{}, errs.E(op, errs.Validation, nil,
			"charge_id", event.ChargeID.String(),
			"amount", event.Amount.Int64())
	}

	var invoice invoicedomain.Invoice
	replayed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invoice, err = s.lockInvoice(tx, "invoice_id = ?", event.InvoiceRef)
		if err != nil {
			return err
		}

		intent := invoicedomain.PaymentIntent{
			ID:         uuid.NewString(),
			ChargeID:   event.ChargeID,
			Amount:     event.Amount,
			Currency:   invoice.Currency,
			CapturedAt: s.clock.Now(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&intent)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			replayed = true
			return nil
		}

		if invoice.State.IsTerminal() {
			return errs.E(op, errs.Validation, invoicedomain.ErrTerminalState,
				"saga_id", invoice.ID.String(),
				"state", string(invoice.State))
		}

		captured := invoice.AmountCaptured.CheckedAdd(event.Amount)
		if captured > invoice.Amount {
			return errs.E(op, errs.Validation, invoicedomain.ErrAmountExceeded,
				"saga_id", invoice.ID.String(),
				"amount", invoice.Amount.Int64(),
				"captured", captured.Int64())
		}

		join := invoicedomain.PaymentIntentInvoice{
			ID:              uuid.NewString(),
			SagaID:          invoice.ID,
			PaymentIntentID: intent.ID,
		}
		if err := tx.Create(&join).Error; err != nil {
			return err
		}
		if err := s.attachFees(tx, intent); err != nil {
			return err
		}

		records, err := invoice.TransactionList()
		if err != nil {
			return err
		}
		records = append(records, invoicedomain.TransactionRecord{
			ChargeID: event.ChargeID,
			Amount:   event.Amount,
		})
		encoded, err := invoicedomain.EncodeTransactions(records)
		if err != nil {
			return err
		}

		next := invoicedomain.StatePartiallyCaptured
		if captured == invoice.Amount {
			next = invoicedomain.StateCaptured
		}
		if !invoice.State.CanAdvanceTo(next) {
			return errs.E(op, errs.Internal, invoicedomain.ErrInvalidTransition,
				"saga_id", invoice.ID.String(),
				"from", string(invoice.State),
				"to", string(next))
		}

		invoice.AmountCaptured = captured
		invoice.State = next
		invoice.Transactions = encoded
		invoice.UpdatedAt = s.clock.Now()
		if err := tx.Save(&invoice).Error; err != nil {
			return err
		}

		if next != invoicedomain.StateCaptured {
			return nil
		}
		return s.markOrders(tx, invoice.ID, invoicedomain.OrderStatusPaid)
	})
	if err != nil {
		return invoicedomain.Invoice{}, wrapInternal(op, err)
	}

	if replayed {
		metrics.IncCapture("replay")
		s.log.Debug("charge replayed, no-op",
			zap.String("charge_id", event.ChargeID.String()),
			zap.String("invoice_ref", event.InvoiceRef.String()),
		)
		return invoice, nil
	}

	metrics.IncCapture("succeeded")
	metrics.IncTransition(string(invoice.State))
	s.log.Info("charge applied",
		zap.String("saga_id", invoice.ID.String()),
		zap.String("charge_id", event.ChargeID.String()),
		zap.Int64("amount", event.Amount.Int64()),
		zap.Int64("amount_captured", invoice.AmountCaptured.Int64()),
		zap.String("state", string(invoice.State)),
	)
	return invoice, nil
}

// Decline terminates a pre-capture invoice. Declining an already-declined
// invoice is a no-op; declining past capture is rejected.
func (s *Service) Decline(ctx context.Context, id billing.SagaID, reason string) (invoicedomain.Invoice, error) {
	return s.terminate(ctx, "invoice.Decline", id, invoicedomain.StateDeclined, invoicedomain.OrderStatusPaymentFailed, reason)
}

// Expire terminates an invoice whose price reservation ran out before any
// complete capture.
func (s *Service) Expire(ctx context.Context, id billing.SagaID) (invoicedomain.Invoice, error) {
	return s.terminate(ctx, "invoice.Expire", id, invoicedomain.StateExpired, invoicedomain.OrderStatusExpired, "reservation_expired")
}

func (s *Service) terminate(
	ctx context.Context,
	op string,
	id billing.SagaID,
	state invoicedomain.InvoiceState,
	orderStatus invoicedomain.OrderPaymentStatus,
	reason string,
) (invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	noop := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invoice, err = s.lockInvoice(tx, "id = ?", id)
		if err != nil {
			return err
		}
		if invoice.State == state {
			noop = true
			return nil
		}
		if !invoice.State.CanAdvanceTo(state) {
			return errs.E(op, errs.Validation, invoicedomain.ErrInvalidTransition,
				"saga_id", id.String(),
				"from", string(invoice.State),
				"to", string(state))
		}

		invoice.State = state
		invoice.UpdatedAt = s.clock.Now()
		if err := tx.Save(&invoice).Error; err != nil {
			return err
		}
		return s.markOrders(tx, id, orderStatus)
	})
	if err != nil {
		return invoicedomain.Invoice{}, wrapInternal(op, err)
	}
	if noop {
		return invoice, nil
	}

	metrics.IncTransition(string(state))
	s.log.Info("invoice terminated",
		zap.String("saga_id", id.String()),
		zap.String("state", string(state)),
		zap.String("reason", reason),
	)
	return invoice, nil
}

// Settle finalizes a fully captured invoice: the state moves to settled and
// every store's merchant account is credited its order total, all in one
// transaction. A failed credit aborts the settlement.
func (s *Service) Settle(ctx context.Context, id billing.SagaID) (invoicedomain.Invoice, error) {
	const op = "invoice.Settle"

	var invoice invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invoice, err = s.lockInvoice(tx, "id = ?", id)
		if err != nil {
			return err
		}
		if invoice.State == invoicedomain.StateSettled {
			return errs.E(op, errs.Validation, invoicedomain.ErrAlreadySettled,
				"saga_id", id.String())
		}
		if invoice.State != invoicedomain.StateCaptured {
			return errs.E(op, errs.Validation, invoicedomain.ErrNotCaptured,
				"saga_id", id.String(),
				"state", string(invoice.State))
		}

		var orders []invoicedomain.OrderInfo
		if err := tx.Where("saga_id = ?", id).Find(&orders).Error; err != nil {
			return err
		}

		perStore := make(map[billing.StoreID]billing.Amount)
		storeOrder := make([]billing.StoreID, 0, len(orders))
		for _, order := range orders {
			if _, seen := perStore[order.StoreID]; !seen {
				storeOrder = append(storeOrder, order.StoreID)
			}
			perStore[order.StoreID] = perStore[order.StoreID].CheckedAdd(order.Price)
		}
		for _, storeID := range storeOrder {
			if err := s.merchants.CreditBalance(tx, storeID, perStore[storeID]); err != nil {
				return err
			}
		}

		invoice.State = invoicedomain.StateSettled
		invoice.UpdatedAt = s.clock.Now()
		if err := tx.Save(&invoice).Error; err != nil {
			return err
		}
		return s.markOrders(tx, id, invoicedomain.OrderStatusSettled)
	})
	if err != nil {
		return invoicedomain.Invoice{}, wrapInternal(op, err)
	}

	metrics.IncTransition(string(invoicedomain.StateSettled))
	s.log.Info("invoice settled",
		zap.String("saga_id", id.String()),
		zap.Int64("amount", invoice.Amount.Int64()),
	)
	return invoice, nil
}

// markOrders moves every order on the invoice to status and enqueues the
// matching saga notifications under the caller's transaction.
func (s *Service) markOrders(tx *gorm.DB, id billing.SagaID, status invoicedomain.OrderPaymentStatus) error {
	var orders []invoicedomain.OrderInfo
	if err := tx.Where("saga_id = ?", id).Find(&orders).Error; err != nil {
		return err
	}
	err := tx.Model(&invoicedomain.OrderInfo{}).
		Where("saga_id = ?", id).
		Update("status", status).Error
	if err != nil {
		return err
	}

	updates := make([]saga.OrderStateUpdate, 0, len(orders))
	for _, order := range orders {
		updates = append(updates, saga.OrderStateUpdate{
			OrderID:    order.OrderID,
			StoreID:    order.StoreID,
			CustomerID: order.CustomerID,
			Status:     status,
		})
	}
	return s.notifier.Enqueue(tx, updates)
}

// lockInvoice loads one invoice under a row lock. sqlite has no FOR UPDATE
// and serializes writers on its own, so the clause is skipped there.
func (s *Service) lockInvoice(tx *gorm.DB, query string, arg any) (invoicedomain.Invoice, error) {
	q := tx.Where(query, arg)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var invoice invoicedomain.Invoice
	if err := q.First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invoicedomain.Invoice{}, errs.E("invoice.lock", errs.Validation, invoicedomain.ErrNotFound)
		}
		return invoicedomain.Invoice{}, err
	}
	return invoice, nil
}

func (s *Service) getByRef(ctx context.Context, ref billing.InvoiceID) (invoicedomain.Invoice, error) {
	const op = "invoice.getByRef"
	var invoice invoicedomain.Invoice
	err := s.db.WithContext(ctx).Where("invoice_id = ?", ref).First(&invoice).Error
	if err != nil {
		return invoicedomain.Invoice{}, notFoundOr(op, err, "invoice_ref", ref.String())
	}
	return invoice, nil
}

func orderUpdates(customerID billing.CustomerID, orders []invoicedomain.NewOrder, status invoicedomain.OrderPaymentStatus) []saga.OrderStateUpdate {
	updates := make([]saga.OrderStateUpdate, 0, len(orders))
	for _, order := range orders {
		updates = append(updates, saga.OrderStateUpdate{
			OrderID:    order.ID,
			StoreID:    order.StoreID,
			CustomerID: customerID,
			Status:     status,
		})
	}
	return updates
}

func notFoundOr(op string, err error, kv ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.E(op, errs.Validation, invoicedomain.ErrNotFound, kv...)
	}
	return errs.E(op, errs.Internal, err, kv...)
}

// wrapInternal keeps tagged errors as-is and wraps everything else.
func wrapInternal(op string, err error) error {
	var tagged *errs.Error
	if errors.As(err, &tagged) {
		return err
	}
	return errs.E(op, errs.Internal, err)
}
