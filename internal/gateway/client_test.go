package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billing "github.com/tradecove/billing/internal/billing/domain"
	"github.com/tradecove/billing/internal/config"
	"github.com/tradecove/billing/internal/gateway"
)

func newTestClient(t *testing.T, handler http.Handler) (gateway.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{
		Gateway: config.GatewayConfig{
			URL:            srv.URL,
			APIKey:         "sk_test",
			RequestTimeout: 2 * time.Second,
			MaxAttempts:    3,
			BackoffBase:    time.Millisecond,
			BackoffCap:     5 * time.Millisecond,
		},
	}
	return gateway.NewClient(cfg, zap.NewNop()), srv
}

func TestIdempotencyKeyIsDeterministicPerAttempt(t *testing.T) {
	ref := billing.NewInvoiceID()
	assert.Equal(t, gateway.IdempotencyKey(ref, 1), gateway.IdempotencyKey(ref, 1))
	assert.NotEqual(t, gateway.IdempotencyKey(ref, 1), gateway.IdempotencyKey(ref, 2))
	assert.NotEqual(t, gateway.IdempotencyKey(ref, 1), gateway.IdempotencyKey(billing.NewInvoiceID(), 1))
}

func TestCaptureSucceeded(t *testing.T) {
	var gotKey atomic.Value
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("Idempotency-Key"))
		w.Write([]byte(`{"charge_id":"ch_1","captured_amount":15000}`))
	}))

	result, err := client.Capture(context.Background(), gateway.CaptureRequest{
		InvoiceRef:   billing.NewInvoiceID(),
		Amount:       15000,
		Currency:     "USD",
		PaymentToken: "tok_visa",
		Attempt:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.ChargeSucceeded, result.Status)
	assert.Equal(t, billing.ChargeID("ch_1"), result.ChargeID)
	assert.Equal(t, billing.Amount(15000), result.CapturedAmount)
	assert.NotEmpty(t, gotKey.Load())
}

func TestCaptureRetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"charge_id":"ch_2","captured_amount":500}`))
	}))

	result, err := client.Capture(context.Background(), gateway.CaptureRequest{
		InvoiceRef: billing.NewInvoiceID(), Amount: 500, Currency: "EUR", PaymentToken: "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.ChargeSucceeded, result.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCaptureExhaustsTransientRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	result, err := client.Capture(context.Background(), gateway.CaptureRequest{
		InvoiceRef: billing.NewInvoiceID(), Amount: 100, Currency: "USD", PaymentToken: "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.ChargeTransientFailure, result.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCapturePermanentDeclineNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"code":"card_declined","message":"do not honor"}}`))
	}))

	result, err := client.Capture(context.Background(), gateway.CaptureRequest{
		InvoiceRef: billing.NewInvoiceID(), Amount: 100, Currency: "USD", PaymentToken: "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.ChargePermanentFailure, result.Status)
	assert.Equal(t, "card_declined", result.Reason)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetInvoiceNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	status, err := client.GetInvoice(context.Background(), billing.NewInvoiceID())
	require.NoError(t, err)
	assert.False(t, status.Found())
}

func TestGetInvoiceReturnsTransactions(t *testing.T) {
	ref := billing.NewInvoiceID()
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"` + ref.String() + `","status":"captured","amount_captured":200,"transactions":[{"txid":"ch_9","amount_captured":200}]}`))
	}))

	status, err := client.GetInvoice(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, status.Found())
	require.Len(t, status.Transactions, 1)
	assert.Equal(t, billing.ChargeID("ch_9"), status.Transactions[0].ChargeID)
	assert.Equal(t, billing.Amount(200), status.Transactions[0].Amount)
}
