// Package domain holds the identifier, amount, and currency types shared by
// the billing components.
package domain

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

func uuidValue(id uuid.UUID) (driver.Value, error) { return id.String(), nil }

func uuidScan(dst *uuid.UUID, src any) error {
	var id uuid.UUID
	if err := id.Scan(src); err != nil {
		return err
	}
	*dst = id
	return nil
}

// SagaID correlates an invoice with the order-orchestration saga that
// requested it. It is the invoice's primary key.
type SagaID uuid.UUID

func NewSagaID() SagaID { return SagaID(uuid.New()) }

func ParseSagaID(s string) (SagaID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return SagaID{}, fmt.Errorf("parse saga id %q: %w", s, err)
	}
	return SagaID(id), nil
}

func (id SagaID) String() string { return uuid.UUID(id).String() }
func (id SagaID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }

func (id SagaID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *SagaID) UnmarshalText(b []byte) error {
	parsed, err := ParseSagaID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
func (id SagaID) Value() (driver.Value, error) { return uuidValue(uuid.UUID(id)) }
func (id *SagaID) Scan(src any) error          { return uuidScan((*uuid.UUID)(id), src) }

// InvoiceID is the external gateway's reference for an invoice.
type InvoiceID uuid.UUID

func NewInvoiceID() InvoiceID { return InvoiceID(uuid.New()) }

func ParseInvoiceID(s string) (InvoiceID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return InvoiceID{}, fmt.Errorf("parse invoice id %q: %w", s, err)
	}
	return InvoiceID(id), nil
}

func (id InvoiceID) String() string { return uuid.UUID(id).String() }
func (id InvoiceID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }

func (id InvoiceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *InvoiceID) UnmarshalText(b []byte) error {
	parsed, err := ParseInvoiceID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
func (id InvoiceID) Value() (driver.Value, error) { return uuidValue(uuid.UUID(id)) }
func (id *InvoiceID) Scan(src any) error          { return uuidScan((*uuid.UUID)(id), src) }

// OrderID identifies a customer order.
type OrderID uuid.UUID

func ParseOrderID(s string) (OrderID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return OrderID{}, fmt.Errorf("parse order id %q: %w", s, err)
	}
	return OrderID(id), nil
}

func (id OrderID) String() string { return uuid.UUID(id).String() }
func (id OrderID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }

func (id OrderID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *OrderID) UnmarshalText(b []byte) error {
	parsed, err := ParseOrderID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
func (id OrderID) Value() (driver.Value, error) { return uuidValue(uuid.UUID(id)) }
func (id *OrderID) Scan(src any) error          { return uuidScan((*uuid.UUID)(id), src) }

// MerchantID identifies a merchant account.
type MerchantID uuid.UUID

func NewMerchantID() MerchantID { return MerchantID(uuid.New()) }

func ParseMerchantID(s string) (MerchantID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return MerchantID{}, fmt.Errorf("parse merchant id %q: %w", s, err)
	}
	return MerchantID(id), nil
}

func (id MerchantID) String() string { return uuid.UUID(id).String() }

func (id MerchantID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *MerchantID) UnmarshalText(b []byte) error {
	parsed, err := ParseMerchantID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
func (id MerchantID) Value() (driver.Value, error) { return uuidValue(uuid.UUID(id)) }
func (id *MerchantID) Scan(src any) error          { return uuidScan((*uuid.UUID)(id), src) }

// StoreID identifies a marketplace store.
type StoreID int64

func ParseStoreID(s string) (StoreID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("parse store id %q", s)
	}
	return StoreID(n), nil
}

func (id StoreID) String() string { return strconv.FormatInt(int64(id), 10) }

// CustomerID identifies the buying customer.
type CustomerID int64

func ParseCustomerID(s string) (CustomerID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("parse customer id %q", s)
	}
	return CustomerID(n), nil
}

func (id CustomerID) String() string { return strconv.FormatInt(int64(id), 10) }

// ChargeID is the gateway-side charge reference. A given charge id maps to
// at most one payment intent.
type ChargeID string

func ParseChargeID(s string) (ChargeID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("charge id is empty")
	}
	return ChargeID(s), nil
}

func (id ChargeID) String() string { return string(id) }
