package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptofolio/config"
	"cryptofolio/pkg/logger"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// gateioSigner implements the multi-line string-to-sign scheme:
// METHOD, path, query, SHA-512 of the (possibly empty) body and a unix
// second timestamp, joined by newlines and HMAC-SHA512 signed. Key,
// timestamp and signature travel as headers.
type gateioSigner struct {
	creds Credentials
}

func (s *gateioSigner) Sign(req *Request, now time.Time) {
	timestamp := strconv.FormatInt(now.Unix(), 10)
	req.RawQuery = req.Query.Encode()

	bodyHash := sha512.Sum512(req.Body)
	toSign := strings.Join([]string{
		req.Method,
		req.Path,
		req.RawQuery,
		hex.EncodeToString(bodyHash[:]),
		timestamp,
	}, "\n")

	mac := hmac.New(sha512.New, []byte(s.creds.APISecret))
	mac.Write([]byte(toSign))

	req.Header.Set("KEY", s.creds.APIKey)
	req.Header.Set("Timestamp", timestamp)
	req.Header.Set("SIGN", hex.EncodeToString(mac.Sum(nil)))
}

// GateIOClient talks to the Gate.io v4 spot REST API.
type GateIOClient struct {
	client  *resty.Client
	signer  Signer
	log     *logger.Logger
	limiter *rate.Limiter
}

func NewGateIOClient(cfg *config.Exchange, log *logger.Logger, creds Credentials) *GateIOClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	perMinute := cfg.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	return &GateIOClient{
		client:  client,
		signer:  &gateioSigner{creds: creds},
		log:     log,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (c *GateIOClient) Name() string {
	return ExchangeGateIO
}

// normalizeSymbol maps "BTC/USDT" onto the underscore pair form the
// API expects ("BTC_USDT").
func (c *GateIOClient) normalizeSymbol(symbol string) string {
	replacer := strings.NewReplacer("/", "_", "-", "_")
	return strings.ToUpper(replacer.Replace(symbol))
}

func (c *GateIOClient) do(ctx context.Context, req *Request, result interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if req.RawQuery == "" {
		req.RawQuery = req.Query.Encode()
	}

	r := c.client.R().SetContext(ctx).SetQueryString(req.RawQuery)
	for key := range req.Header {
		r.SetHeader(key, req.Header.Get(key))
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}
	if result != nil {
		r.SetResult(result)
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		return nil, fmt.Errorf("gateio request failed: %w", err)
	}
	if resp.IsError() {
		return resp.Body(), &APIError{Exchange: ExchangeGateIO, StatusCode: resp.StatusCode(), Body: resp.Body()}
	}
	return resp.Body(), nil
}

type gateioTicker struct {
	CurrencyPair     string `json:"currency_pair"`
	Last             string `json:"last"`
	ChangePercentage string `json:"change_percentage"`
}

func (c *GateIOClient) ticker(ctx context.Context, symbol string) (*gateioTicker, error) {
	req := NewRequest(http.MethodGet, "/api/v4/spot/tickers")
	req.Query.Set("currency_pair", c.normalizeSymbol(symbol))

	var tickers []gateioTicker
	if _, err := c.do(ctx, req, &tickers); err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("gateio returned no ticker for %q", symbol)
	}
	return &tickers[0], nil
}

func (c *GateIOClient) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	ticker, err := c.ticker(ctx, symbol)
	if err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(ticker.Last, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable gateio price %q: %w", ticker.Last, err)
	}
	return price, nil
}

func (c *GateIOClient) Change24h(ctx context.Context, symbol string) (float64, error) {
	ticker, err := c.ticker(ctx, symbol)
	if err != nil {
		return 0, err
	}

	change, err := strconv.ParseFloat(ticker.ChangePercentage, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable gateio 24h change %q: %w", ticker.ChangePercentage, err)
	}
	return change, nil
}

type gateioAccount struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
}

func (c *GateIOClient) accounts(ctx context.Context, currency string) ([]gateioAccount, error) {
	req := NewRequest(http.MethodGet, "/api/v4/spot/accounts")
	if currency != "" {
		req.Query.Set("currency", strings.ToUpper(currency))
	}
	c.signer.Sign(req, time.Now())

	var accounts []gateioAccount
	if _, err := c.do(ctx, req, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *GateIOClient) AccountStatus(ctx context.Context) error {
	_, err := c.accounts(ctx, "")
	return err
}

func (c *GateIOClient) AssetBalance(ctx context.Context, asset string) (float64, error) {
	accounts, err := c.accounts(ctx, asset)
	if err != nil {
		return 0, err
	}
	if len(accounts) == 0 {
		return 0, nil
	}

	available, err := strconv.ParseFloat(accounts[0].Available, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable gateio balance %q: %w", accounts[0].Available, err)
	}
	return available, nil
}

type gateioOrderRequest struct {
	CurrencyPair string `json:"currency_pair"`
	Type         string `json:"type"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	TimeInForce  string `json:"time_in_force"`
}

type gateioOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *GateIOClient) SubmitMarketOrder(ctx context.Context, orderReq OrderRequest) (*OrderResult, error) {
	// Market buys are sized in quote currency, market sells in base
	// asset, which matches how the engine sizes each side.
	amount := orderReq.Notional
	if orderReq.Side == SideSell {
		amount = orderReq.Quantity
	}

	payload, err := json.Marshal(gateioOrderRequest{
		CurrencyPair: c.normalizeSymbol(orderReq.Symbol),
		Type:         "market",
		Side:         strings.ToLower(orderReq.Side),
		Amount:       strconv.FormatFloat(amount, 'f', -1, 64),
		TimeInForce:  "ioc",
	})
	if err != nil {
		return nil, err
	}

	req := NewRequest(http.MethodPost, "/api/v4/spot/orders")
	req.Body = payload
	c.signer.Sign(req, time.Now())

	var response gateioOrderResponse
	body, err := c.do(ctx, req, &response)
	if err != nil {
		return &OrderResult{Raw: body}, err
	}

	return &OrderResult{ExchangeOrderID: response.ID, Raw: body}, nil
}
