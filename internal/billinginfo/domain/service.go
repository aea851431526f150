package domain

import (
	"context"

	billing "github.com/tradecove/billing/internal/billing/domain"
)

// NewRussiaBillingInfo is the create payload for a domestic settlement record.
type NewRussiaBillingInfo struct {
	StoreID  billing.StoreID `json:"store_id"`
	KPP      string          `json:"kpp"`
	BIC      string          `json:"bic"`
	INN      string          `json:"inn"`
	FullName string          `json:"full_name"`
}

// NewInternationalBillingInfo is the create payload for a cross-border
// settlement record.
type NewInternationalBillingInfo struct {
	StoreID          billing.StoreID  `json:"store_id"`
	Account          string           `json:"account"`
	Currency         billing.Currency `json:"currency"`
	Name             string           `json:"name"`
	Bank             string           `json:"bank"`
	Swift            string           `json:"swift"`
	BankAddress      string           `json:"bank_address"`
	Country          string           `json:"country"`
	City             string           `json:"city"`
	RecipientAddress string           `json:"recipient_address"`
}

// Service routes stores to their settlement details and maintains the
// per-country billing-info records.
type Service interface {
	// Route returns the single authoritative billing variant for the store.
	Route(ctx context.Context, storeID billing.StoreID) (StoreBilling, error)
	CreateRussiaBillingInfo(ctx context.Context, payload NewRussiaBillingInfo) (RussiaBillingInfo, error)
	CreateInternationalBillingInfo(ctx context.Context, payload NewInternationalBillingInfo) (InternationalBillingInfo, error)
}
