package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	billing "github.com/tradecove/billing/internal/billing/domain"
	"github.com/tradecove/billing/pkg/errs"
)

// getExchangeRates proxies the stores service's exchange table so checkout
// frontends can price carts in the invoice currency.
func (s *Server) getExchangeRates(c *gin.Context) {
	currency, err := billing.ParseCurrency(c.Param("currency"))
	if err != nil {
		AbortWithError(c, errs.E("http.get_exchange_rates", errs.MalformedInput, err))
		return
	}

	exchange, err := s.storesSvc.GetCurrencyExchange(c.Request.Context(), currency)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"currency": currency.String(),
		"rates":    exchange.Rates,
	})
}
