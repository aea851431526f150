// Package gateway talks to the external card-payment gateway. It performs
// idempotent reservation and capture calls and classifies failures for the
// invoice lifecycle controller; it never mutates local state.
package gateway

import (
	"context"
	"time"

	billing "github.com/tradecove/billing/internal/billing/domain"
)

// ChargeStatus classifies a gateway response.
type ChargeStatus string

const (
	// ChargeSucceeded carries the gateway charge id and captured amount.
	ChargeSucceeded ChargeStatus = "succeeded"
	// ChargeTransientFailure covers timeouts, rate limits, and 5xx; eligible
	// for retry with bounded backoff.
	ChargeTransientFailure ChargeStatus = "transient_failure"
	// ChargePermanentFailure covers declines and invalid tokens; not retried.
	ChargePermanentFailure ChargeStatus = "permanent_failure"
)

// ReserveRequest asks the gateway to open an invoice for later capture.
type ReserveRequest struct {
	InvoiceRef billing.InvoiceID
	Amount     billing.Amount
	Currency   billing.Currency
	// WithWallet requests a settlement wallet for escrow-style paths.
	WithWallet bool
}

// Reservation is the gateway's view of a freshly opened invoice.
type Reservation struct {
	InvoiceRef billing.InvoiceID
	Wallet     string
	ReservedAt time.Time
}

// CaptureRequest collects funds against a reserved invoice. Attempt feeds the
// idempotency key so a retried network call cannot double-charge.
type CaptureRequest struct {
	InvoiceRef   billing.InvoiceID
	Amount       billing.Amount
	Currency     billing.Currency
	PaymentToken string
	Attempt      int
}

// ChargeResult is the classified outcome of a capture call.
type ChargeResult struct {
	Status         ChargeStatus
	ChargeID       billing.ChargeID
	CapturedAmount billing.Amount
	Reason         string
}

// Transaction is one gateway-reported charge against an invoice.
type Transaction struct {
	ChargeID billing.ChargeID `json:"txid"`
	Amount   billing.Amount   `json:"amount_captured"`
}

// InvoiceStatus is the gateway's authoritative state for an invoice, used by
// the reconciliation sweep to re-derive truth.
type InvoiceStatus struct {
	InvoiceRef     billing.InvoiceID `json:"id"`
	State          string            `json:"status"`
	AmountCaptured billing.Amount    `json:"amount_captured"`
	Transactions   []Transaction     `json:"transactions"`
	Declined       bool              `json:"declined"`
}

// Found reports whether the gateway knows the invoice at all.
func (s InvoiceStatus) Found() bool { return !s.InvoiceRef.IsZero() }

// Client is the gateway contract. Implementations must be safe for
// concurrent use; the lifecycle controller is injected with this interface so
// tests can substitute doubles.
type Client interface {
	Reserve(ctx context.Context, req ReserveRequest) (Reservation, error)
	Capture(ctx context.Context, req CaptureRequest) (ChargeResult, error)
	GetInvoice(ctx context.Context, ref billing.InvoiceID) (InvoiceStatus, error)
}
