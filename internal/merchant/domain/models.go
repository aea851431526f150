// Package domain defines merchant accounts and their balance invariants.
package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"

	billing "github.com/tradecove/billing/internal/billing/domain"
)

// AccountStatus gates whether a merchant can receive settlements.
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusBlocked AccountStatus = "blocked"
)

// SubjectType names the owner kind of a merchant account.
type SubjectType string

const (
	SubjectTypeUser  SubjectType = "user"
	SubjectTypeStore SubjectType = "store"
)

var (
	ErrNotFound       = errors.New("merchant_not_found")
	ErrAmbiguousOwner = errors.New("merchant_owner_ambiguous")
	ErrBlocked        = errors.New("merchant_blocked")
)

// MerchantAccount holds settlement funds for exactly one user or one store.
type MerchantAccount struct {
	MerchantID billing.MerchantID  `gorm:"column:merchant_id;primaryKey;type:uuid"`
	UserID     *billing.CustomerID `gorm:"column:user_id"`
	StoreID    *billing.StoreID    `gorm:"column:store_id"`
	Type       SubjectType         `gorm:"column:type;type:varchar(16);not null"`
	Currency   billing.Currency    `gorm:"column:currency;type:varchar(8);not null"`
	Balance    billing.Amount      `gorm:"column:balance;not null;default:0"`
	Status     AccountStatus       `gorm:"column:status;type:varchar(16);not null;default:'active'"`
}

func (MerchantAccount) TableName() string { return "merchants" }

// NewStoreAccount builds a merchant account owned by a store.
func NewStoreAccount(storeID billing.StoreID, currency billing.Currency) MerchantAccount {
	return MerchantAccount{
		MerchantID: billing.NewMerchantID(),
		StoreID:    &storeID,
		Type:       SubjectTypeStore,
		Currency:   currency,
		Status:     AccountStatusActive,
	}
}

// NewUserAccount builds a merchant account owned by a user.
func NewUserAccount(userID billing.CustomerID, currency billing.Currency) MerchantAccount {
	return MerchantAccount{
		MerchantID: billing.NewMerchantID(),
		UserID:     &userID,
		Type:       SubjectTypeUser,
		Currency:   currency,
		Status:     AccountStatusActive,
	}
}

// Validate enforces the owner-xor invariant: exactly one subject kind set.
func (m MerchantAccount) Validate() error {
	if (m.UserID == nil) == (m.StoreID == nil) {
		return ErrAmbiguousOwner
	}
	return nil
}

// Repository is the persistence contract for merchant accounts. CreditBalance
// must be called inside the same transaction as the settlement transition.
type Repository interface {
	Create(ctx context.Context, account MerchantAccount) error
	GetByStore(ctx context.Context, storeID billing.StoreID) (MerchantAccount, error)
	CreditBalance(tx *gorm.DB, storeID billing.StoreID, amount billing.Amount) error
}
