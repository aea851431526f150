package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	billing "github.com/tradecove/billing/internal/billing/domain"
	"github.com/tradecove/billing/internal/config"
	"github.com/tradecove/billing/pkg/errs"
)

type gatewayError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// permanent decline codes reported by the gateway.
var permanentCodes = map[string]bool{
	"card_declined":         true,
	"invalid_payment_token": true,
	"expired_card":          true,
	"insufficient_funds":    true,
}

type client struct {
	cfg        config.GatewayConfig
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient builds the HTTP gateway client from configuration.
func NewClient(cfg config.Config, log *zap.Logger) Client {
	return &client{
		cfg:        cfg.Gateway,
		httpClient: &http.Client{Timeout: cfg.Gateway.RequestTimeout},
		log:        log.Named("gateway.client"),
	}
}

// IdempotencyKey derives the deterministic per-attempt key.
func IdempotencyKey(ref billing.InvoiceID, attempt int) string {
	sum := sha256.Sum256([]byte(ref.String() + ":" + strconv.Itoa(attempt)))
	return hex.EncodeToString(sum[:])
}

func (c *client) Reserve(ctx context.Context, req ReserveRequest) (Reservation, error) {
	const op = "gateway.reserve"

	values := url.Values{}
	values.Set("invoice_ref", req.InvoiceRef.String())
	values.Set("amount", strconv.FormatInt(req.Amount.Int64(), 10))
	values.Set("currency", strings.ToLower(req.Currency.String()))
	if req.WithWallet {
		values.Set("wallet", "true")
	}

	var reservation Reservation
	err := c.doWithRetry(ctx, http.MethodPost, "/v1/invoices", values,
		IdempotencyKey(req.InvoiceRef, 0), &reservation)
	if err != nil {
		return Reservation{}, errs.E(op, errs.Internal, err, "invoice_ref", req.InvoiceRef.String())
	}
	return reservation, nil
}

func (c *client) Capture(ctx context.Context, req CaptureRequest) (ChargeResult, error) {
	const op = "gateway.capture"

	values := url.Values{}
	values.Set("invoice_ref", req.InvoiceRef.String())
	values.Set("amount", strconv.FormatInt(req.Amount.Int64(), 10))
	values.Set("currency", strings.ToLower(req.Currency.String()))
	values.Set("payment_token", req.PaymentToken)

	key := IdempotencyKey(req.InvoiceRef, req.Attempt)

	var lastReason string
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, c.cfg.BackoffBase, c.cfg.BackoffCap, attempt-1); err != nil {
				return ChargeResult{}, errs.E(op, errs.Internal, err, "invoice_ref", req.InvoiceRef.String())
			}
		}

		result, retryable, err := c.captureOnce(ctx, values, key)
		if err != nil {
			return ChargeResult{}, errs.E(op, errs.Internal, err, "invoice_ref", req.InvoiceRef.String())
		}
		if !retryable {
			return result, nil
		}
		lastReason = result.Reason
		c.log.Warn("transient gateway failure, retrying",
			zap.String("invoice_ref", req.InvoiceRef.String()),
			zap.Int("attempt", attempt+1),
			zap.String("reason", result.Reason),
		)
	}

	return ChargeResult{Status: ChargeTransientFailure, Reason: lastReason}, nil
}

// captureOnce performs one HTTP round trip. retryable is true only for
// transient classifications; a returned error means the call could not be
// attempted at all.
func (c *client) captureOnce(ctx context.Context, values url.Values, idempotencyKey string) (ChargeResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/v1/charges",
		strings.NewReader(values.Encode()))
	if err != nil {
		return ChargeResult{}, false, err
	}
	c.setHeaders(req, idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ChargeResult{}, false, ctx.Err()
		}
		// network error or client timeout
		return ChargeResult{Status: ChargeTransientFailure, Reason: err.Error()}, true, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		var payload struct {
			ChargeID string `json:"charge_id"`
			Amount   int64  `json:"captured_amount"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return ChargeResult{}, false, err
		}
		if payload.ChargeID == "" {
			return ChargeResult{}, false, errors.New("gateway response missing charge id")
		}
		return ChargeResult{
			Status:         ChargeSucceeded,
			ChargeID:       billing.ChargeID(payload.ChargeID),
			CapturedAmount: billing.Amount(payload.Amount),
		}, false, nil

	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return ChargeResult{
			Status: ChargeTransientFailure,
			Reason: fmt.Sprintf("gateway status %d", resp.StatusCode),
		}, true, nil

	default:
		reason := c.decodeErrorReason(resp)
		return ChargeResult{Status: ChargePermanentFailure, Reason: reason}, false, nil
	}
}

func (c *client) GetInvoice(ctx context.Context, ref billing.InvoiceID) (InvoiceStatus, error) {
	const op = "gateway.get_invoice"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.URL+"/v1/invoices/"+ref.String(), nil)
	if err != nil {
		return InvoiceStatus{}, errs.E(op, errs.Internal, err, "invoice_ref", ref.String())
	}
	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return InvoiceStatus{}, errs.E(op, errs.Internal, err, "invoice_ref", ref.String())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return InvoiceStatus{}, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return InvoiceStatus{}, errs.E(op, errs.Internal,
			fmt.Errorf("gateway status %d", resp.StatusCode), "invoice_ref", ref.String())
	}

	var status InvoiceStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return InvoiceStatus{}, errs.E(op, errs.Internal, err, "invoice_ref", ref.String())
	}
	return status, nil
}

func (c *client) doWithRetry(ctx context.Context, method, path string, values url.Values, idempotencyKey string, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, c.cfg.BackoffBase, c.cfg.BackoffCap, attempt-1); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path,
			strings.NewReader(values.Encode()))
		if err != nil {
			return err
		}
		c.setHeaders(req, idempotencyKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			lastErr = fmt.Errorf("gateway status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode >= http.StatusBadRequest {
			reason := c.decodeErrorReason(resp)
			resp.Body.Close()
			return fmt.Errorf("gateway rejected request: %s", reason)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		return err
	}
	return lastErr
}

func (c *client) setHeaders(req *http.Request, idempotencyKey string) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if req.Method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
}

func (c *client) decodeErrorReason(resp *http.Response) string {
	var payload gatewayError
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Sprintf("gateway status %d", resp.StatusCode)
	}
	code := strings.TrimSpace(payload.Error.Code)
	if code == "" {
		return fmt.Sprintf("gateway status %d", resp.StatusCode)
	}
	if permanentCodes[code] {
		return code
	}
	if msg := strings.TrimSpace(payload.Error.Message); msg != "" {
		return code + ": " + msg
	}
	return code
}
