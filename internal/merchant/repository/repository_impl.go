package repository

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"gorm.io/gorm"

	billing "github.com/tradecove/billing/internal/billing/domain"
	"github.com/tradecove/billing/internal/merchant/domain"
	"github.com/tradecove/billing/pkg/errs"
)

type Params struct {
	fx.In

	DB *gorm.DB
}

type repository struct {
	db *gorm.DB
}

func New(p Params) domain.Repository {
	return &repository{db: p.DB}
}

func (r *repository) Create(ctx context.Context, account domain.MerchantAccount) error {
	const op = "merchant.create"
	if err := account.Validate(); err != nil {
		return errs.E(op, errs.Validation, err, "merchant_id", account.MerchantID.String())
	}
	if err := r.db.WithContext(ctx).Create(&account).Error; err != nil {
		return errs.E(op, errs.Internal, err, "merchant_id", account.MerchantID.String())
	}
	return nil
}

func (r *repository) GetByStore(ctx context.Context, storeID billing.StoreID) (domain.MerchantAccount, error) {
	const op = "merchant.get_by_store"
	var account domain.MerchantAccount
	err := r.db.WithContext(ctx).Where("store_id = ?", storeID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.MerchantAccount{}, errs.E(op, errs.Validation, domain.ErrNotFound,
			"store_id", storeID.String())
	}
	if err != nil {
		return domain.MerchantAccount{}, errs.E(op, errs.Internal, err, "store_id", storeID.String())
	}
	return account, nil
}

// CreditBalance applies a read-modify-write under the caller's transaction so
// concurrent settlements against the same merchant cannot lose updates.
func (r *repository) CreditBalance(tx *gorm.DB, storeID billing.StoreID, amount billing.Amount) error {
	const op = "merchant.credit_balance"

	result := tx.Exec(
		`UPDATE merchants SET balance = balance + ? WHERE store_id = ? AND status = ?`,
		amount.Int64(), storeID, domain.AccountStatusActive,
	)
	if result.Error != nil {
		return errs.E(op, errs.Internal, result.Error, "store_id", storeID.String())
	}
	if result.RowsAffected == 0 {
		return errs.E(op, errs.Validation, domain.ErrNotFound, "store_id", storeID.String())
	}
	return nil
}
