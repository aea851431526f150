package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	billing "github.com/tradecove/billing/internal/billing/domain"
	merchantdomain "github.com/tradecove/billing/internal/merchant/domain"
	"github.com/tradecove/billing/pkg/errs"
)

type createMerchantRequest struct {
	StoreID  *billing.StoreID    `json:"store_id,omitempty"`
	UserID   *billing.CustomerID `json:"user_id,omitempty"`
	Currency string              `json:"currency"`
}

func (s *Server) createMerchant(c *gin.Context) {
	const op = "http.create_merchant"

	var req createMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errs.E(op, errs.MalformedInput, err))
		return
	}
	currency, err := billing.ParseCurrency(req.Currency)
	if err != nil {
		AbortWithError(c, errs.E(op, errs.Validation, err))
		return
	}

	var account merchantdomain.MerchantAccount
	switch {
	case req.StoreID != nil && req.UserID == nil:
		account = merchantdomain.NewStoreAccount(*req.StoreID, currency)
	case req.UserID != nil && req.StoreID == nil:
		account = merchantdomain.NewUserAccount(*req.UserID, currency)
	default:
		AbortWithError(c, errs.E(op, errs.Validation, merchantdomain.ErrAmbiguousOwner))
		return
	}

	if err := s.merchantSvc.Create(c.Request.Context(), account); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"merchant_id": account.MerchantID.String(),
		"currency":    account.Currency.String(),
	})
}
