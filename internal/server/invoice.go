package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	billing "github.com/tradecove/billing/internal/billing/domain"
	invoicedomain "github.com/tradecove/billing/internal/invoice/domain"
	"github.com/tradecove/billing/pkg/errs"
)

type transactionResponse struct {
	ChargeID string `json:"charge_id"`
	Amount   int64  `json:"amount"`
}

type invoiceResponse struct {
	ID             string                `json:"id"`
	InvoiceRef     string                `json:"invoice_ref"`
	Amount         int64                 `json:"amount"`
	AmountCaptured int64                 `json:"amount_captured"`
	Currency       string                `json:"currency"`
	State          string                `json:"state"`
	Wallet         *string               `json:"wallet,omitempty"`
	PriceReserved  *time.Time            `json:"price_reserved,omitempty"`
	Transactions   []transactionResponse `json:"transactions"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func toInvoiceResponse(invoice invoicedomain.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:             invoice.ID.String(),
		InvoiceRef:     invoice.InvoiceRef.String(),
		Amount:         invoice.Amount.Int64(),
		AmountCaptured: invoice.AmountCaptured.Int64(),
		Currency:       invoice.Currency.String(),
		State:          string(invoice.State),
		Wallet:         invoice.Wallet,
		PriceReserved:  invoice.PriceReserved,
		Transactions:   []transactionResponse{},
		CreatedAt:      invoice.CreatedAt,
		UpdatedAt:      invoice.UpdatedAt,
	}
	if records, err := invoice.TransactionList(); err == nil {
		for _, record := range records {
			resp.Transactions = append(resp.Transactions, transactionResponse{
				ChargeID: record.ChargeID.String(),
				Amount:   record.Amount.Int64(),
			})
		}
	}
	return resp
}

func (s *Server) createInvoice(c *gin.Context) {
	var req invoicedomain.CreateInvoice
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errs.E("http.create_invoice", errs.MalformedInput, err))
		return
	}

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInvoiceResponse(invoice))
}

func (s *Server) getInvoice(c *gin.Context) {
	id, err := billing.ParseSagaID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errs.E("http.get_invoice", errs.MalformedInput, err))
		return
	}

	invoice, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(invoice))
}

func (s *Server) getInvoiceOrders(c *gin.Context) {
	id, err := billing.ParseSagaID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errs.E("http.get_invoice_orders", errs.MalformedInput, err))
		return
	}

	orderIDs, err := s.invoiceSvc.OrderIDs(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ids := make([]string, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		ids = append(ids, orderID.String())
	}
	c.JSON(http.StatusOK, gin.H{"order_ids": ids})
}

func (s *Server) getInvoiceByOrder(c *gin.Context) {
	orderID, err := billing.ParseOrderID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, errs.E("http.get_invoice_by_order", errs.MalformedInput, err))
		return
	}

	invoice, err := s.invoiceSvc.GetByOrderID(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(invoice))
}

func (s *Server) getOrderFees(c *gin.Context) {
	orderID, err := billing.ParseOrderID(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, errs.E("http.get_order_fees", errs.MalformedInput, err))
		return
	}

	fees, err := s.invoiceSvc.FeesByOrderID(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if fees == nil {
		fees = []invoicedomain.AppliedFee{}
	}
	c.JSON(http.StatusOK, gin.H{"fees": fees})
}

type payRequest struct {
	PaymentToken string `json:"payment_token"`
}

func (s *Server) payInvoice(c *gin.Context) {
	id, err := billing.ParseSagaID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errs.E("http.pay_invoice", errs.MalformedInput, err))
		return
	}
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errs.E("http.pay_invoice", errs.MalformedInput, err))
		return
	}

	invoice, err := s.invoiceSvc.Pay(c.Request.Context(), id, req.PaymentToken)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(invoice))
}

func (s *Server) settleInvoice(c *gin.Context) {
	id, err := billing.ParseSagaID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errs.E("http.settle_invoice", errs.MalformedInput, err))
		return
	}

	invoice, err := s.invoiceSvc.Settle(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(invoice))
}

type declineRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) declineInvoice(c *gin.Context) {
	id, err := billing.ParseSagaID(c.Param("id"))
	if err != nil {
		AbortWithError(c, errs.E("http.decline_invoice", errs.MalformedInput, err))
		return
	}
	var req declineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errs.E("http.decline_invoice", errs.MalformedInput, err))
		return
	}

	invoice, err := s.invoiceSvc.Decline(c.Request.Context(), id, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(invoice))
}

type gatewayCallbackRequest struct {
	InvoiceRef billing.InvoiceID `json:"invoice_ref"`
	ChargeID   string            `json:"charge_id"`
	Amount     int64             `json:"amount_captured"`
	Declined   bool              `json:"declined"`
	Reason     string            `json:"reason"`
}

// gatewayCallback receives live capture/decline events from the gateway.
// Events are also recovered by the reconciliation sweep, so a lost callback
// delays state, never corrupts it.
func (s *Server) gatewayCallback(c *gin.Context) {
	if s.cfg.Gateway.CallbackSecret != "" &&
		c.GetHeader("X-Callback-Secret") != s.cfg.Gateway.CallbackSecret {
		AbortWithError(c, errs.E("http.gateway_callback", errs.Unauthorized, nil))
		return
	}

	var req gatewayCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errs.E("http.gateway_callback", errs.MalformedInput, err))
		return
	}

	invoice, err := s.invoiceSvc.ApplyCharge(c.Request.Context(), invoicedomain.ChargeEvent{
		InvoiceRef: req.InvoiceRef,
		ChargeID:   billing.ChargeID(req.ChargeID),
		Amount:     billing.Amount(req.Amount),
		Declined:   req.Declined,
		Reason:     req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(invoice))
}
