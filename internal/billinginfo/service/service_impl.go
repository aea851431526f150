// Package service implements billing-type routing over the per-country
// settlement tables.
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
	"github.com/tradecove/billing/internal/billinginfo/domain"
	"github.com/tradecove/billing/pkg/db"
	"github.com/tradecove/billing/pkg/errs"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p Params) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("billinginfo.service"),
	}
}

// Route looks up the store's billing type and loads the matching settlement
// record. A store without a configured type is a caller error; a configured
// type without its record means the write path lost consistency.
func (s *Service) Route(ctx context.Context, storeID billing.StoreID) (domain.StoreBilling, error) {
	const op = "billinginfo.route"

	var mapping domain.StoreBillingType
	err := s.db.WithContext(ctx).Where("store_id = ?", storeID).First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.StoreBilling{}, errs.E(op, errs.Validation, domain.ErrBillingTypeNotFound,
			"store_id", storeID.String())
	}
	if err != nil {
		return domain.StoreBilling{}, errs.E(op, errs.Internal, err, "store_id", storeID.String())
	}

	info, err := s.loadInfo(ctx, mapping)
	if err != nil {
		return domain.StoreBilling{}, err
	}

	return domain.StoreBilling{
		StoreID: storeID,
		Type:    mapping.BillingType,
		Info:    info,
	}, nil
}

func (s *Service) loadInfo(ctx context.Context, mapping domain.StoreBillingType) (domain.BillingInfo, error) {
	const op = "billinginfo.load"

	switch mapping.BillingType {
	case domain.BillingTypeRussia:
		var info domain.RussiaBillingInfo
		if err := s.db.WithContext(ctx).Where("store_id = ?", mapping.StoreID).First(&info).Error; err != nil {
			return nil, s.infoError(op, mapping, err)
		}
		return info, nil
	case domain.BillingTypeInternational:
		var info domain.InternationalBillingInfo
		if err := s.db.WithContext(ctx).Where("store_id = ?", mapping.StoreID).First(&info).Error; err != nil {
			return nil, s.infoError(op, mapping, err)
		}
		return info, nil
	case domain.BillingTypeProxy:
		var intl domain.InternationalBillingInfo
		if err := s.db.WithContext(ctx).Where("store_id = ?", mapping.StoreID).First(&intl).Error; err != nil {
			return nil, s.infoError(op, mapping, err)
		}
		var info domain.ProxyCompanyBillingInfo
		if err := s.db.WithContext(ctx).Where("country_alpha3 = ?", strings.ToUpper(intl.Country)).First(&info).Error; err != nil {
			return nil, s.infoError(op, mapping, err)
		}
		return info, nil
	default:
		return nil, errs.E(op, errs.Internal, domain.ErrBillingInfoMissing,
			"store_id", mapping.StoreID.String(),
			"billing_type", string(mapping.BillingType))
	}
}

// infoError classifies a missing settlement record as Internal: the mapping
// row exists, so the paired record must too.
func (s *Service) infoError(op string, mapping domain.StoreBillingType, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Error("billing info record missing for configured store",
			zap.String("store_id", mapping.StoreID.String()),
			zap.String("billing_type", string(mapping.BillingType)),
		)
		err = domain.ErrBillingInfoMissing
	}
	return errs.E(op, errs.Internal, err,
		"store_id", mapping.StoreID.String(),
		"billing_type", string(mapping.BillingType))
}

// CreateRussiaBillingInfo stores a domestic settlement record and flips the
// store's billing type inside the same transaction.
func (s *Service) CreateRussiaBillingInfo(ctx context.Context, payload domain.NewRussiaBillingInfo) (domain.RussiaBillingInfo, error) {
	const op = "billinginfo.create_russia"

	info := domain.RussiaBillingInfo{
		ID:       uuid.NewString(),
		StoreID:  payload.StoreID,
		KPP:      payload.KPP,
		BIC:      payload.BIC,
		INN:      payload.INN,
		FullName: payload.FullName,
	}
	err := s.createWithType(ctx, payload.StoreID, domain.BillingTypeRussia, &info)
	if err != nil {
		return domain.RussiaBillingInfo{}, s.createError(op, payload.StoreID, err)
	}
	return info, nil
}

// CreateInternationalBillingInfo stores a cross-border settlement record and
// flips the store's billing type inside the same transaction.
func (s *Service) CreateInternationalBillingInfo(ctx context.Context, payload domain.NewInternationalBillingInfo) (domain.InternationalBillingInfo, error) {
	const op = "billinginfo.create_international"

	info := domain.InternationalBillingInfo{
		ID:               uuid.NewString(),
		StoreID:          payload.StoreID,
		Account:          payload.Account,
		Currency:         payload.Currency,
		Name:             payload.Name,
		Bank:             payload.Bank,
		Swift:            payload.Swift,
		BankAddress:      payload.BankAddress,
		Country:          payload.Country,
		City:             payload.City,
		RecipientAddress: payload.RecipientAddress,
	}
	err := s.createWithType(ctx, payload.StoreID, domain.BillingTypeInternational, &info)
	if err != nil {
		return domain.InternationalBillingInfo{}, s.createError(op, payload.StoreID, err)
	}
	return info, nil
}

func (s *Service) createWithType(ctx context.Context, storeID billing.StoreID, billingType domain.BillingType, record any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		mapping := domain.StoreBillingType{
			ID:          billing.NewMerchantID(),
			StoreID:     storeID,
			BillingType: billingType,
		}
		// A store switching billing variants overwrites its routing row.
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}},
			DoUpdates: clause.Assignments(map[string]any{"billing_type": billingType}),
		}).Create(&mapping).Error
	})
}

func (s *Service) createError(op string, storeID billing.StoreID, err error) error {
	if db.IsDuplicateKeyErr(err) {
		return errs.E(op, errs.Validation, domain.ErrBillingInfoExists, "store_id", storeID.String())
	}
	return errs.E(op, errs.Internal, err, "store_id", storeID.String())
}
