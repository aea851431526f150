// Package domain contains the invoice aggregate and its state machine.
package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	billing "github.com/tradecove/billing/internal/billing/domain"
)

// InvoiceState is the lifecycle position of an invoice. States only move
// forward; Declined and Expired are terminal and reachable from any
// pre-capture state.
type InvoiceState string

const (
	StatePending           InvoiceState = "pending"
	StateReserved          InvoiceState = "reserved"
	StatePartiallyCaptured InvoiceState = "partially_captured"
	StateCaptured          InvoiceState = "captured"
	StateSettled           InvoiceState = "settled"
	StateDeclined          InvoiceState = "declined"
	StateExpired           InvoiceState = "expired"
)

// rank orders the forward progression for monotonicity checks.
var rank = map[InvoiceState]int{
	StatePending:           0,
	StateReserved:          1,
	StatePartiallyCaptured: 2,
	StateCaptured:          3,
	StateSettled:           4,
}

// IsTerminal reports whether no further transitions are allowed.
func (s InvoiceState) IsTerminal() bool {
	return s == StateSettled || s == StateDeclined || s == StateExpired
}

// CanAdvanceTo reports whether moving from s to next honors forward-only
// progression. Declined/Expired are reachable from any non-terminal,
// pre-capture state.
func (s InvoiceState) CanAdvanceTo(next InvoiceState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateDeclined || next == StateExpired {
		return rank[s] < rank[StateCaptured]
	}
	return rank[next] > rank[s]
}

// Invoice aggregates one or more orders for a single settlement attempt.
// The primary key is the saga correlation id; InvoiceRef is the external
// gateway's reference.
type Invoice struct {
	ID             billing.SagaID    `gorm:"column:id;primaryKey;type:uuid"`
	InvoiceRef     billing.InvoiceID `gorm:"column:invoice_id;type:uuid;not null;uniqueIndex"`
	Transactions   datatypes.JSON    `gorm:"column:transactions;not null;default:'[]'"`
	Amount         billing.Amount    `gorm:"column:amount;not null"`
	Currency       billing.Currency  `gorm:"column:currency;type:varchar(8);not null"`
	PriceReserved  *time.Time        `gorm:"column:price_reserved"`
	State          InvoiceState      `gorm:"column:state;type:varchar(32);not null"`
	Wallet         *string           `gorm:"column:wallet"`
	AmountCaptured billing.Amount    `gorm:"column:amount_captured;not null;default:0"`
	CreatedAt      time.Time         `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;not null"`
}

func (Invoice) TableName() string { return "invoices" }

// TransactionRecord is one recorded gateway charge kept on the invoice row
// for auditability.
type TransactionRecord struct {
	ChargeID billing.ChargeID `json:"id"`
	Amount   billing.Amount   `json:"amount_captured"`
}

// TransactionList decodes the stored transactions column.
func (i Invoice) TransactionList() ([]TransactionRecord, error) {
	if len(i.Transactions) == 0 {
		return nil, nil
	}
	var records []TransactionRecord
	if err := json.Unmarshal(i.Transactions, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// EncodeTransactions serializes the record list for storage.
func EncodeTransactions(records []TransactionRecord) (datatypes.JSON, error) {
	if records == nil {
		records = []TransactionRecord{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// OrderPaymentStatus is the order status propagated to the saga.
type OrderPaymentStatus string

const (
	OrderStatusNew           OrderPaymentStatus = "new"
	OrderStatusPaid          OrderPaymentStatus = "paid"
	OrderStatusSettled       OrderPaymentStatus = "settled"
	OrderStatusPaymentFailed OrderPaymentStatus = "payment_failed"
	OrderStatusExpired       OrderPaymentStatus = "expired"
)

// OrderInfo links one order to the invoice settling it.
type OrderInfo struct {
	ID         string             `gorm:"column:id;primaryKey;type:uuid"`
	OrderID    billing.OrderID    `gorm:"column:order_id;type:uuid;not null"`
	StoreID    billing.StoreID    `gorm:"column:store_id;not null"`
	CustomerID billing.CustomerID `gorm:"column:customer_id;not null"`
	SagaID     billing.SagaID     `gorm:"column:saga_id;type:uuid;not null;index"`
	Price      billing.Amount     `gorm:"column:price;not null"`
	Currency   billing.Currency   `gorm:"column:currency;type:varchar(8);not null"`
	Status     OrderPaymentStatus `gorm:"column:status;type:varchar(32);not null"`
}

func (OrderInfo) TableName() string { return "orders_info" }

// PaymentIntent records one gateway charge. The charge id is the
// deduplication key: replayed capture events for a known charge are no-ops.
type PaymentIntent struct {
	ID         string           `gorm:"column:id;primaryKey;type:uuid"`
	ChargeID   billing.ChargeID `gorm:"column:charge_id;not null;uniqueIndex"`
	Amount     billing.Amount   `gorm:"column:amount;not null"`
	Currency   billing.Currency `gorm:"column:currency;type:varchar(8);not null"`
	CapturedAt time.Time        `gorm:"column:captured_at;not null"`
}

func (PaymentIntent) TableName() string { return "payment_intents" }

// PaymentIntentInvoice joins one payment intent to exactly one invoice.
type PaymentIntentInvoice struct {
	ID              string         `gorm:"column:id;primaryKey;type:uuid"`
	SagaID          billing.SagaID `gorm:"column:invoice_id;type:uuid;not null;index"`
	PaymentIntentID string         `gorm:"column:payment_intent_id;type:uuid;not null;uniqueIndex"`
}

func (PaymentIntentInvoice) TableName() string { return "payment_intents_invoices" }

// FeeRule names how a fee amount is computed.
type FeeRule string

const (
	FeeRuleFixed   FeeRule = "fixed"
	FeeRulePercent FeeRule = "percent"
)

// Fee is a processing-fee computation rule, immutable once attached to a
// captured payment intent.
type Fee struct {
	ID                 string           `gorm:"column:id;primaryKey;type:uuid"`
	Rule               FeeRule          `gorm:"column:rule;type:varchar(16);not null"`
	FixedAmount        *billing.Amount  `gorm:"column:fixed_amount"`
	PercentBasisPoints *int64           `gorm:"column:percent_basis_points"`
	Currency           billing.Currency `gorm:"column:currency;type:varchar(8);not null"`
}

func (Fee) TableName() string { return "fees" }

// Apply computes the fee for a captured amount in minor units. Percent fees
// round down.
func (f Fee) Apply(captured billing.Amount) billing.Amount {
	switch f.Rule {
	case FeeRuleFixed:
		if f.FixedAmount == nil {
			return 0
		}
		return *f.FixedAmount
	case FeeRulePercent:
		if f.PercentBasisPoints == nil {
			return 0
		}
		return billing.Amount(captured.Int64() * *f.PercentBasisPoints / 10_000)
	default:
		return 0
	}
}

// PaymentIntentFee attributes a fee to a payment intent. Amount is the fee
// computed against the captured amount at attribution time, frozen even if
// the rule later changes.
type PaymentIntentFee struct {
	ID              string         `gorm:"column:id;primaryKey;type:uuid"`
	PaymentIntentID string         `gorm:"column:payment_intent_id;type:uuid;not null;index"`
	FeeID           string         `gorm:"column:fee_id;type:uuid;not null"`
	Amount          billing.Amount `gorm:"column:amount;not null"`
}

func (PaymentIntentFee) TableName() string { return "payment_intents_fees" }

// AppliedFee is one fee charged against a capture, as reported to callers.
type AppliedFee struct {
	ChargeID billing.ChargeID `json:"charge_id"`
	FeeID    string           `json:"fee_id"`
	Rule     FeeRule          `json:"rule"`
	Amount   billing.Amount   `json:"amount"`
	Currency billing.Currency `json:"currency"`
}
