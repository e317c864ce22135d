package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cryptofolio/config"
	"cryptofolio/pkg/logger"
)

const (
	ExchangeBinance = "binance"
	ExchangeGateIO  = "gateio"

	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Credentials is the signing material of one linked account.
type Credentials struct {
	APIKey    string
	APISecret string
}

// OrderRequest describes a market order. BUY orders are sized by
// Notional (quote currency); SELL orders by Quantity (base asset),
// resolved from a balance lookup before submission.
type OrderRequest struct {
	Symbol   string
	Side     string
	Notional float64
	Quantity float64
}

// OrderResult carries the raw exchange response alongside the assigned id.
type OrderResult struct {
	ExchangeOrderID string
	Raw             json.RawMessage
}

// Client is the capability surface the engine needs from one exchange.
// Implementations never retry: the next scheduler tick is the retry.
type Client interface {
	Name() string
	SpotPrice(ctx context.Context, symbol string) (float64, error)
	Change24h(ctx context.Context, symbol string) (float64, error)
	AccountStatus(ctx context.Context) error
	AssetBalance(ctx context.Context, asset string) (float64, error)
	SubmitMarketOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}

// APIError is a non-2xx exchange response.
type APIError struct {
	Exchange   string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api returned status %d: %s", e.Exchange, e.StatusCode, string(e.Body))
}

// AuthFailure reports whether the response points at bad signing
// material rather than a transient fault.
func (e *APIError) AuthFailure() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// Factory builds a client for an account's exchange. The signing scheme
// is selected here, once per account, not per call.
type Factory interface {
	ClientFor(exchange string, creds Credentials) (Client, error)
}

type factory struct {
	cfg *config.Config
	log *logger.Logger
}

func NewFactory(cfg *config.Config, log *logger.Logger) Factory {
	return &factory{cfg: cfg, log: log}
}

func (f *factory) ClientFor(exchange string, creds Credentials) (Client, error) {
	switch strings.ToLower(exchange) {
	case ExchangeBinance:
		return NewBinanceClient(&f.cfg.Binance, f.log, creds), nil
	case ExchangeGateIO:
		return NewGateIOClient(&f.cfg.GateIO, f.log, creds), nil
	default:
		return nil, fmt.Errorf("unsupported exchange %q", exchange)
	}
}
