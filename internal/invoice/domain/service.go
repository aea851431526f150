package domain

import (
	"context"
	"errors"

	billing "github.com/tradecove/billing/internal/billing/domain"
)

var (
	ErrNotFound          = errors.New("invoice_not_found")
	ErrTerminalState     = errors.New("invoice_in_terminal_state")
	ErrAmountExceeded    = errors.New("capture_exceeds_invoice_amount")
	ErrEmptyOrders       = errors.New("invoice_has_no_orders")
	ErrCurrencyMismatch  = errors.New("order_currency_mismatch")
	ErrNotCaptured       = errors.New("invoice_not_captured")
	ErrNotPayable        = errors.New("invoice_not_payable")
	ErrGatewayDown       = errors.New("gateway_unavailable")
	ErrAlreadySettled    = errors.New("invoice_already_settled")
	ErrInvalidTransition = errors.New("invalid_state_transition")
)

// NewOrder is one order inside a creation request.
type NewOrder struct {
	ID       billing.OrderID  `json:"id"`
	StoreID  billing.StoreID  `json:"store_id"`
	Price    billing.Amount   `json:"price"`
	Currency billing.Currency `json:"currency"`
}

// CreateInvoice is the order-aggregation request arriving from the saga.
type CreateInvoice struct {
	SagaID       billing.SagaID     `json:"saga_id"`
	CustomerID   billing.CustomerID `json:"customer_id"`
	Currency     billing.Currency   `json:"currency"`
	PaymentToken string             `json:"payment_token"`
	Orders       []NewOrder         `json:"orders"`
}

// ChargeEvent is a gateway capture/decline notification, live or reconciled.
type ChargeEvent struct {
	InvoiceRef billing.InvoiceID
	ChargeID   billing.ChargeID
	Amount     billing.Amount
	Declined   bool
	Reason     string
}

// Service owns invoice state. All mutations go through it; the
// reconciliation processor replays gateway truth through the same methods
// that serve live events.
type Service interface {
	Create(ctx context.Context, req CreateInvoice) (Invoice, error)
	GetByID(ctx context.Context, id billing.SagaID) (Invoice, error)
	GetByOrderID(ctx context.Context, orderID billing.OrderID) (Invoice, error)
	OrderIDs(ctx context.Context, id billing.SagaID) ([]billing.OrderID, error)
	// FeesByOrderID lists the fees attributed to the captures of the invoice
	// settling the order.
	FeesByOrderID(ctx context.Context, orderID billing.OrderID) ([]AppliedFee, error)

	// Pay captures the outstanding balance through the gateway and applies
	// the classified result.
	Pay(ctx context.Context, id billing.SagaID, paymentToken string) (Invoice, error)
	// ApplyCharge applies a gateway capture event. Replays of a known charge
	// id are no-ops.
	ApplyCharge(ctx context.Context, event ChargeEvent) (Invoice, error)
	// Decline moves a pre-capture invoice to the terminal declined state.
	Decline(ctx context.Context, id billing.SagaID, reason string) (Invoice, error)
	// Expire moves a pre-capture invoice past its reservation TTL to expired.
	Expire(ctx context.Context, id billing.SagaID) (Invoice, error)
	// Settle finalizes a captured invoice and credits merchant balances in
	// one transaction.
	Settle(ctx context.Context, id billing.SagaID) (Invoice, error)
}
