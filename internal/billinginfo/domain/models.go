// Package domain defines settlement-detail records and the billing-type
// routing for stores.
package domain

import (
	"errors"

	billing "github.com/tradecove/billing/internal/billing/domain"
)

// BillingType selects the settlement path for a store.
type BillingType string

const (
	BillingTypeRussia        BillingType = "russia"
	BillingTypeInternational BillingType = "international"
	BillingTypeProxy         BillingType = "proxy"
)

var (
	ErrBillingTypeNotFound = errors.New("store_billing_type_not_found")
	ErrBillingInfoMissing  = errors.New("billing_info_missing")
	ErrBillingInfoExists   = errors.New("billing_info_exists")
)

// StoreBillingType maps a store to its authoritative billing type.
type StoreBillingType struct {
	ID          billing.MerchantID `gorm:"column:id;primaryKey;type:uuid"`
	StoreID     billing.StoreID    `gorm:"column:store_id;not null;uniqueIndex"`
	BillingType BillingType        `gorm:"column:billing_type;type:varchar(16);not null"`
}

func (StoreBillingType) TableName() string { return "store_billing_type" }

// RussiaBillingInfo is the domestic settlement record.
type RussiaBillingInfo struct {
	ID       string          `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	StoreID  billing.StoreID `gorm:"column:store_id;not null;uniqueIndex" json:"store_id"`
	KPP      string          `gorm:"column:kpp;not null" json:"kpp"`
	BIC      string          `gorm:"column:bic;not null" json:"bic"`
	INN      string          `gorm:"column:inn;not null" json:"inn"`
	FullName string          `gorm:"column:full_name;not null" json:"full_name"`
}

func (RussiaBillingInfo) TableName() string { return "russia_billing_info" }

// InternationalBillingInfo is the cross-border settlement record.
type InternationalBillingInfo struct {
	ID               string           `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	StoreID          billing.StoreID  `gorm:"column:store_id;not null;uniqueIndex" json:"store_id"`
	Account          string           `gorm:"column:account;not null" json:"account"`
	Currency         billing.Currency `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Name             string           `gorm:"column:name;not null" json:"name"`
	Bank             string           `gorm:"column:bank;not null" json:"bank"`
	Swift            string           `gorm:"column:swift;not null" json:"swift"`
	BankAddress      string           `gorm:"column:bank_address;not null" json:"bank_address"`
	Country          string           `gorm:"column:country;not null" json:"country"`
	City             string           `gorm:"column:city;not null" json:"city"`
	RecipientAddress string           `gorm:"column:recipient_address;not null" json:"recipient_address"`
}

func (InternationalBillingInfo) TableName() string { return "international_billing_info" }

// ProxyCompanyBillingInfo is the payout record of the proxy company serving a
// country.
type ProxyCompanyBillingInfo struct {
	ID               string           `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CountryAlpha3    string           `gorm:"column:country_alpha3;type:varchar(3);not null" json:"country_alpha3"`
	Account          string           `gorm:"column:account;not null" json:"account"`
	Currency         billing.Currency `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Name             string           `gorm:"column:name;not null" json:"name"`
	Bank             string           `gorm:"column:bank;not null" json:"bank"`
	Swift            string           `gorm:"column:swift;not null" json:"swift"`
	BankAddress      string           `gorm:"column:bank_address;not null" json:"bank_address"`
	Country          string           `gorm:"column:country;not null" json:"country"`
	City             string           `gorm:"column:city;not null" json:"city"`
	RecipientAddress string           `gorm:"column:recipient_address;not null" json:"recipient_address"`
}

func (ProxyCompanyBillingInfo) TableName() string { return "proxy_companies_billing_info" }

// BillingInfo is the settlement-detail variant selected for a store. Exactly
// one concrete type implements it per store, so "more than one variant
// populated" cannot be represented.
type BillingInfo interface {
	BillingType() BillingType
}

func (RussiaBillingInfo) BillingType() BillingType        { return BillingTypeRussia }
func (InternationalBillingInfo) BillingType() BillingType { return BillingTypeInternational }
func (ProxyCompanyBillingInfo) BillingType() BillingType  { return BillingTypeProxy }

// StoreBilling is the routing result for a store: the billing type and its
// single authoritative settlement record.
type StoreBilling struct {
	StoreID billing.StoreID
	Type    BillingType
	Info    BillingInfo
}

// RequiresWallet reports whether the settlement path needs a gateway wallet
// assigned at reservation time.
func (b StoreBilling) RequiresWallet() bool {
	return b.Type == BillingTypeProxy
}
