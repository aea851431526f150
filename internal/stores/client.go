// Package stores wraps the catalog/stores microservice.
package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	billing "github.com/tradecove/billing/internal/billing/domain"
	"github.com/tradecove/billing/internal/config"
	"github.com/tradecove/billing/pkg/errs"
)

// CurrencyExchange maps a currency to its current sell rates.
type CurrencyExchange struct {
	Rates map[billing.Currency]float64 `json:"rates"`
}

// Client exposes the store-side settlement inputs.
type Client interface {
	// GetCurrencyExchange returns the exchange table for the given currency.
	GetCurrencyExchange(ctx context.Context, currency billing.Currency) (CurrencyExchange, error)
}

type httpClient struct {
	cfg    config.StoresConfig
	client *http.Client
	log    *zap.Logger
}

// NewClient builds the HTTP stores client from configuration.
func NewClient(cfg config.Config, log *zap.Logger) Client {
	return &httpClient{
		cfg:    cfg.Stores,
		client: &http.Client{Timeout: cfg.Stores.RequestTimeout},
		log:    log.Named("stores.client"),
	}
}

func (c *httpClient) GetCurrencyExchange(ctx context.Context, currency billing.Currency) (CurrencyExchange, error) {
	const op = "stores.get_currency_exchange"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/currency_exchange", nil)
	if err != nil {
		return CurrencyExchange{}, errs.E(op, errs.Internal, err)
	}
	req.Header.Set("Currency", currency.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return CurrencyExchange{}, errs.E(op, errs.Internal, err, "currency", currency.String())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return CurrencyExchange{}, errs.E(op, errs.Internal,
			fmt.Errorf("stores status %d", resp.StatusCode), "currency", currency.String())
	}

	var exchange CurrencyExchange
	if err := json.NewDecoder(resp.Body).Decode(&exchange); err != nil {
		return CurrencyExchange{}, errs.E(op, errs.Internal, err, "currency", currency.String())
	}
	return exchange, nil
}

// Module wires the stores client.
var Module = fx.Module("stores.client",
	fx.Provide(NewClient),
)
