package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	billing "github.com/tradecove/billing/internal/billing/domain"
	billinginfodomain "github.com/tradecove/billing/internal/billinginfo/domain"
	"github.com/tradecove/billing/pkg/errs"
)

func (s *Server) getStoreBilling(c *gin.Context) {
	storeID, err := billing.ParseStoreID(c.Param("store_id"))
	if err != nil {
		AbortWithError(c, errs.E("http.get_store_billing", errs.MalformedInput, err))
		return
	}

	route, err := s.billingSvc.Route(c.Request.Context(), storeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"store_id":     route.StoreID.String(),
		"billing_type": string(route.Type),
		"info":         route.Info,
	})
}

func (s *Server) putRussiaBillingInfo(c *gin.Context) {
	storeID, err := billing.ParseStoreID(c.Param("store_id"))
	if err != nil {
		AbortWithError(c, errs.E("http.put_russia_billing", errs.MalformedInput, err))
		return
	}

	var payload billinginfodomain.NewRussiaBillingInfo
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, errs.E("http.put_russia_billing", errs.MalformedInput, err))
		return
	}
	payload.StoreID = storeID

	info, err := s.billingSvc.CreateRussiaBillingInfo(c.Request.Context(), payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) putInternationalBillingInfo(c *gin.Context) {
	storeID, err := billing.ParseStoreID(c.Param("store_id"))
	if err != nil {
		AbortWithError(c, errs.E("http.put_international_billing", errs.MalformedInput, err))
		return
	}

	var payload billinginfodomain.NewInternationalBillingInfo
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, errs.E("http.put_international_billing", errs.MalformedInput, err))
		return
	}
	payload.StoreID = storeID

	info, err := s.billingSvc.CreateInternationalBillingInfo(c.Request.Context(), payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
