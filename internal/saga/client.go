// Package saga propagates terminal invoice outcomes to the
// order-orchestration service. Delivery is at-least-once; the receiver is
// idempotent on (order_id, status).
package saga

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	billing "github.com/tradecove/billing/internal/billing/domain"
	"github.com/tradecove/billing/internal/config"
	invoicedomain "github.com/tradecove/billing/internal/invoice/domain"
	"github.com/tradecove/billing/pkg/errs"
)

// OrderStateUpdate is one order-status change delivered to the saga.
type OrderStateUpdate struct {
	OrderID    billing.OrderID                  `json:"order_id"`
	StoreID    billing.StoreID                  `json:"store_id"`
	CustomerID billing.CustomerID               `json:"customer_id"`
	Status     invoicedomain.OrderPaymentStatus `json:"status"`
}

// Client delivers order-state updates to the orchestration service.
type Client interface {
	UpdateOrderStates(ctx context.Context, updates []OrderStateUpdate) error
}

type httpClient struct {
	cfg    config.SagaConfig
	client *http.Client
	log    *zap.Logger
}

// NewClient builds the HTTP saga client from configuration.
func NewClient(cfg config.Config, log *zap.Logger) Client {
	return &httpClient{
		cfg:    cfg.Saga,
		client: &http.Client{Timeout: cfg.Saga.RequestTimeout},
		log:    log.Named("saga.client"),
	}
}

func (c *httpClient) UpdateOrderStates(ctx context.Context, updates []OrderStateUpdate) error {
	const op = "saga.update_order_states"
	if len(updates) == 0 {
		return nil
	}

	body, err := json.Marshal(updates)
	if err != nil {
		return errs.E(op, errs.Internal, err)
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, c.cfg.BackoffBase, c.cfg.BackoffCap, attempt-1); err != nil {
				return errs.E(op, errs.Internal, err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.cfg.URL+"/orders/update_state", bytes.NewReader(body))
		if err != nil {
			return errs.E(op, errs.Internal, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return errs.E(op, errs.Internal, ctx.Err())
			}
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode < http.StatusMultipleChoices {
			return nil
		}
		lastErr = fmt.Errorf("saga status %d", resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			// non-retryable rejection
			return errs.E(op, errs.Internal, lastErr, "updates", len(updates))
		}
	}
	return errs.E(op, errs.Internal, lastErr, "updates", len(updates))
}

// sleepBackoff waits for base<<attempt capped at cap, honoring ctx.
func sleepBackoff(ctx context.Context, base, cap time.Duration, attempt int) error {
	d := base << uint(attempt)
	if d > cap || d <= 0 {
		d = cap
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
