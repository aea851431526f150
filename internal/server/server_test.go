package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billing "github.com/tradecove/billing/internal/billing/domain"
	billinginfodomain "github.com/tradecove/billing/internal/billinginfo/domain"
	"github.com/tradecove/billing/internal/config"
	invoicedomain "github.com/tradecove/billing/internal/invoice/domain"
	merchantdomain "github.com/tradecove/billing/internal/merchant/domain"
	"github.com/tradecove/billing/internal/stores"
	"github.com/tradecove/billing/pkg/errs"
	"gorm.io/gorm"
)

type stubInvoiceSvc struct {
	invoices map[billing.SagaID]invoicedomain.Invoice
	byRef    map[billing.InvoiceID]billing.SagaID
	applied  []invoicedomain.ChargeEvent
	created  []invoicedomain.CreateInvoice
	fees     []invoicedomain.AppliedFee
}

func newStubInvoiceSvc() *stubInvoiceSvc {
	return &stubInvoiceSvc{
		invoices: map[billing.SagaID]invoicedomain.Invoice{},
		byRef:    map[billing.InvoiceID]billing.SagaID{},
	}
}

func (s *stubInvoiceSvc) add(invoice invoicedomain.Invoice) {
	s.invoices[invoice.ID] = invoice
	s.byRef[invoice.InvoiceRef] = invoice.ID
}

func (s *stubInvoiceSvc) Create(_ context.Context, req invoicedomain.CreateInvoice) (invoicedomain.Invoice, error) {
	if len(req.Orders) == 0 {
		return invoicedomain.Invoice{}, errs.E("invoice.Create", errs.Validation, invoicedomain.ErrEmptyOrders)
	}
	s.created = append(s.created, req)
	invoice := invoicedomain.Invoice{
		ID:         req.SagaID,
		InvoiceRef: billing.NewInvoiceID(),
		Amount:     req.Orders[0].Price,
		Currency:   req.Currency,
		State:      invoicedomain.StateReserved,
	}
	s.add(invoice)
	return invoice, nil
}

func (s *stubInvoiceSvc) GetByID(_ context.Context, id billing.SagaID) (invoicedomain.Invoice, error) {
	invoice, ok := s.invoices[id]
	if !ok {
		return invoicedomain.Invoice{}, errs.E("invoice.GetByID", errs.Validation, invoicedomain.ErrNotFound)
	}
	return invoice, nil
}

func (s *stubInvoiceSvc) GetByOrderID(_ context.Context, _ billing.OrderID) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, errs.E("invoice.GetByOrderID", errs.Validation, invoicedomain.ErrNotFound)
}

func (s *stubInvoiceSvc) OrderIDs(_ context.Context, _ billing.SagaID) ([]billing.OrderID, error) {
	return nil, nil
}

func (s *stubInvoiceSvc) FeesByOrderID(_ context.Context, orderID billing.OrderID) ([]invoicedomain.AppliedFee, error) {
	if len(s.fees) == 0 {
		return nil, errs.E("invoice.FeesByOrderID", errs.Validation, invoicedomain.ErrNotFound,
			"order_id", orderID.String())
	}
	return s.fees, nil
}

func (s *stubInvoiceSvc) Pay(_ context.Context, id billing.SagaID, _ string) (invoicedomain.Invoice, error) {
	return s.GetByID(context.Background(), id)
}

func (s *stubInvoiceSvc) ApplyCharge(_ context.Context, event invoicedomain.ChargeEvent) (invoicedomain.Invoice, error) {
	id, ok := s.byRef[event.InvoiceRef]
	if !ok {
		return invoicedomain.Invoice{}, errs.E("invoice.ApplyCharge", errs.Validation, invoicedomain.ErrNotFound)
	}
	s.applied = append(s.applied, event)
	invoice := s.invoices[id]
	invoice.AmountCaptured = event.Amount
	invoice.State = invoicedomain.StateCaptured
	s.invoices[id] = invoice
	return invoice, nil
}

func (s *stubInvoiceSvc) Decline(_ context.Context, id billing.SagaID, _ string) (invoicedomain.Invoice, error) {
	return s.GetByID(context.Background(), id)
}

func (s *stubInvoiceSvc) Expire(_ context.Context, id billing.SagaID) (invoicedomain.Invoice, error) {
	return s.GetByID(context.Background(), id)
}

func (s *stubInvoiceSvc) Settle(_ context.Context, id billing.SagaID) (invoicedomain.Invoice, error) {
	return s.GetByID(context.Background(), id)
}

type stubBillingSvc struct{}

func (stubBillingSvc) Route(_ context.Context, storeID billing.StoreID) (billinginfodomain.StoreBilling, error) {
	return billinginfodomain.StoreBilling{}, errs.E("billinginfo.route", errs.Validation,
		billinginfodomain.ErrBillingTypeNotFound, "store_id", storeID.String())
}

func (stubBillingSvc) CreateRussiaBillingInfo(_ context.Context, payload billinginfodomain.NewRussiaBillingInfo) (billinginfodomain.RussiaBillingInfo, error) {
	return billinginfodomain.RussiaBillingInfo{StoreID: payload.StoreID, INN: payload.INN}, nil
}

func (stubBillingSvc) CreateInternationalBillingInfo(_ context.Context, _ billinginfodomain.NewInternationalBillingInfo) (billinginfodomain.InternationalBillingInfo, error) {
	return billinginfodomain.InternationalBillingInfo{}, errors.New("boom")
}

type stubMerchantRepo struct {
	created []merchantdomain.MerchantAccount
}

func (r *stubMerchantRepo) Create(_ context.Context, account merchantdomain.MerchantAccount) error {
	r.created = append(r.created, account)
	return nil
}

func (r *stubMerchantRepo) GetByStore(_ context.Context, _ billing.StoreID) (merchantdomain.MerchantAccount, error) {
	return merchantdomain.MerchantAccount{}, merchantdomain.ErrNotFound
}

func (r *stubMerchantRepo) CreditBalance(_ *gorm.DB, _ billing.StoreID, _ billing.Amount) error {
	return nil
}

type stubStoresClient struct{}

func (stubStoresClient) GetCurrencyExchange(_ context.Context, currency billing.Currency) (stores.CurrencyExchange, error) {
	return stores.CurrencyExchange{
		Rates: map[billing.Currency]float64{"USD": 1.08, currency: 1},
	}, nil
}

func newTestServer(t *testing.T) (*Server, *stubInvoiceSvc, *stubMerchantRepo) {
	t.Helper()
	svc := newStubInvoiceSvc()
	merchants := &stubMerchantRepo{}
	srv := NewServer(ServerParams{
		Engine: NewEngine(zap.NewNop()),
		Config: config.Config{Gateway: config.GatewayConfig{
			CallbackSecret: "cb_secret",
		}},
		InvoiceSvc:  svc,
		BillingSvc:  stubBillingSvc{},
		MerchantSvc: merchants,
		StoresSvc:   stubStoresClient{},
	})
	return srv, svc, merchants
}

func doJSON(srv *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, req)
	return w
}

func TestCreateInvoiceEndpoint(t *testing.T) {
	srv, svc, _ := newTestServer(t)

	sagaID := billing.NewSagaID()
	w := doJSON(srv, http.MethodPost, "/v1/invoices", map[string]any{
		"saga_id":       sagaID.String(),
		"customer_id":   701,
		"currency":      "EUR",
		"payment_token": "tok_test",
		"orders": []map[string]any{{
			"id":       billing.NewInvoiceID().String(),
			"store_id": 41,
			"price":    15000,
			"currency": "EUR",
		}},
	}, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp invoiceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, sagaID.String(), resp.ID)
	assert.Equal(t, "reserved", resp.State)
	assert.Equal(t, int64(15000), resp.Amount)
	require.Len(t, svc.created, 1)
}

func TestCreateInvoiceEndpoint_MalformedBody(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/invoices", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "malformed_input")
}

func TestCreateInvoiceEndpoint_ValidationError(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(srv, http.MethodPost, "/v1/invoices", map[string]any{
		"saga_id":       billing.NewSagaID().String(),
		"customer_id":   701,
		"currency":      "EUR",
		"payment_token": "tok_test",
		"orders":        []map[string]any{},
	}, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
}

func TestGetInvoiceEndpoint_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(srv, http.MethodGet, "/v1/invoices/"+billing.NewSagaID().String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}

func TestGetInvoiceEndpoint_BadID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(srv, http.MethodGet, "/v1/invoices/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrderFeesEndpoint(t *testing.T) {
	srv, svc, _ := newTestServer(t)
	svc.fees = []invoicedomain.AppliedFee{{
		ChargeID: "ch_1",
		FeeID:    "7a6d3b84-5a3e-4f0f-9a11-2a4f5cbb9d01",
		Rule:     invoicedomain.FeeRulePercent,
		Amount:   150,
		Currency: "EUR",
	}}

	w := doJSON(srv, http.MethodGet, "/v1/orders/0f2b7f6e-7e8a-4c57-9f39-6f9ad1c2d3e4/fees", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"charge_id":"ch_1"`)
	assert.Contains(t, w.Body.String(), `"amount":150`)

	w = doJSON(srv, http.MethodGet, "/v1/orders/not-a-uuid/fees", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGatewayCallback(t *testing.T) {
	srv, svc, _ := newTestServer(t)

	invoice := invoicedomain.Invoice{
		ID:         billing.NewSagaID(),
		InvoiceRef: billing.NewInvoiceID(),
		Amount:     10_000,
		Currency:   "EUR",
		State:      invoicedomain.StateReserved,
	}
	svc.add(invoice)

	body := map[string]any{
		"invoice_ref":     invoice.InvoiceRef.String(),
		"charge_id":       "ch_1",
		"amount_captured": 10000,
	}

	// Missing secret is rejected.
	w := doJSON(srv, http.MethodPost, "/v1/callbacks/gateway", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.applied)

	w = doJSON(srv, http.MethodPost, "/v1/callbacks/gateway", body, map[string]string{
		"X-Callback-Secret": "cb_secret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.applied, 1)
	assert.Equal(t, billing.ChargeID("ch_1"), svc.applied[0].ChargeID)
	assert.Equal(t, billing.Amount(10_000), svc.applied[0].Amount)
}

func TestPutRussiaBillingInfo(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(srv, http.MethodPut, "/v1/stores/41/billing/russia", map[string]any{
		"inn":       "7707083893",
		"kpp":       "773601001",
		"bic":       "044525225",
		"full_name": "OOO Test",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "7707083893")
}

func TestPutInternationalBillingInfo_InternalCollapsed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(srv, http.MethodPut, "/v1/stores/41/billing/international", map[string]any{
		"account": "DE02120300000000202051",
	}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// The cause never reaches the client.
	assert.NotContains(t, w.Body.String(), "boom")
	assert.Contains(t, w.Body.String(), "internal_error")
}

func TestCreateMerchantEndpoint(t *testing.T) {
	srv, _, merchants := newTestServer(t)

	w := doJSON(srv, http.MethodPost, "/v1/merchants", map[string]any{
		"store_id": 41,
		"currency": "EUR",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, merchants.created, 1)
	assert.NoError(t, merchants.created[0].Validate())

	// Both owners set is ambiguous.
	w = doJSON(srv, http.MethodPost, "/v1/merchants", map[string]any{
		"store_id": 41,
		"user_id":  7,
		"currency": "EUR",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestExchangeRatesEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(srv, http.MethodGet, "/v1/rates/EUR", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "USD")

	w = doJSON(srv, http.MethodGet, "/v1/rates/euros", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(srv, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvoiceResponseSerialization(t *testing.T) {
	reserved := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	transactions, err := invoicedomain.EncodeTransactions([]invoicedomain.TransactionRecord{
		{ChargeID: "ch_1", Amount: 5_000},
	})
	require.NoError(t, err)

	invoice := invoicedomain.Invoice{
		ID:             billing.NewSagaID(),
		InvoiceRef:     billing.NewInvoiceID(),
		Amount:         10_000,
		AmountCaptured: 5_000,
		Currency:       "EUR",
		State:          invoicedomain.StatePartiallyCaptured,
		PriceReserved:  &reserved,
		Transactions:   transactions,
	}

	resp := toInvoiceResponse(invoice)
	assert.Equal(t, fmt.Sprintf("%d", int64(10_000)), fmt.Sprintf("%d", resp.Amount))
	require.Len(t, resp.Transactions, 1)
	assert.Equal(t, "ch_1", resp.Transactions[0].ChargeID)
	assert.Equal(t, int64(5_000), resp.Transactions[0].Amount)
}
