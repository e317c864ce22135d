package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"cryptofolio/config"
	"cryptofolio/pkg/logger"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const binanceRecvWindow = "5000"

// binanceSigner implements the query-string HMAC-SHA256 scheme: a
// millisecond timestamp joins the canonical query, the digest of that
// query is appended as the signature parameter and the API key travels
// in a header.
type binanceSigner struct {
	creds Credentials
}

func (s *binanceSigner) Sign(req *Request, now time.Time) {
	req.Query.Set("timestamp", strconv.FormatInt(now.UnixMilli(), 10))
	req.Query.Set("recvWindow", binanceRecvWindow)

	payload := req.Query.Encode()
	mac := hmac.New(sha256.New, []byte(s.creds.APISecret))
	mac.Write([]byte(payload))

	// The signature parameter itself is excluded from the signed payload.
	req.RawQuery = payload + "&signature=" + hex.EncodeToString(mac.Sum(nil))
	req.Header.Set("X-MBX-APIKEY", s.creds.APIKey)
}

// BinanceClient talks to the Binance spot REST API.
type BinanceClient struct {
	client  *resty.Client
	signer  Signer
	log     *logger.Logger
	limiter *rate.Limiter
}

func NewBinanceClient(cfg *config.Exchange, log *logger.Logger, creds Credentials) *BinanceClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	perMinute := cfg.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	return &BinanceClient{
		client:  client,
		signer:  &binanceSigner{creds: creds},
		log:     log,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (c *BinanceClient) Name() string {
	return ExchangeBinance
}

// normalizeSymbol maps "BTC/USDT" onto the compact uppercase form the
// API expects ("BTCUSDT").
func (c *BinanceClient) normalizeSymbol(symbol string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return -1
	}, symbol)
}

func (c *BinanceClient) do(ctx context.Context, req *Request, result interface{}) ([]byte, error) {
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
	if result != nil {
		r.SetResult(result)
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		return nil, fmt.Errorf("binance request failed: %w", err)
	}
	if resp.IsError() {
		return resp.Body(), &APIError{Exchange: ExchangeBinance, StatusCode: resp.StatusCode(), Body: resp.Body()}
	}
	return resp.Body(), nil
}

type binanceTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (c *BinanceClient) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	req := NewRequest(http.MethodGet, "/api/v3/ticker/price")
	req.Query.Set("symbol", c.normalizeSymbol(symbol))

	var ticker binanceTicker
	if _, err := c.do(ctx, req, &ticker); err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable binance price %q: %w", ticker.Price, err)
	}
	return price, nil
}

type binanceTicker24h struct {
	Symbol             string `json:"symbol"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
}

func (c *BinanceClient) Change24h(ctx context.Context, symbol string) (float64, error) {
	req := NewRequest(http.MethodGet, "/api/v3/ticker/24hr")
	req.Query.Set("symbol", c.normalizeSymbol(symbol))

	var ticker binanceTicker24h
	if _, err := c.do(ctx, req, &ticker); err != nil {
		return 0, err
	}

	change, err := strconv.ParseFloat(ticker.PriceChangePercent, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable binance 24h change %q: %w", ticker.PriceChangePercent, err)
	}
	return change, nil
}

type binanceAccount struct {
	Balances []struct {
		Asset string `json:"asset"`
		Free  string `json:"free"`
	} `json:"balances"`
}

func (c *BinanceClient) account(ctx context.Context) (*binanceAccount, error) {
	req := NewRequest(http.MethodGet, "/api/v3/account")
	c.signer.Sign(req, time.Now())

	var account binanceAccount
	if _, err := c.do(ctx, req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *BinanceClient) AccountStatus(ctx context.Context) error {
	_, err := c.account(ctx)
	return err
}

func (c *BinanceClient) AssetBalance(ctx context.Context, asset string) (float64, error) {
	account, err := c.account(ctx)
	if err != nil {
		return 0, err
	}

	asset = strings.ToUpper(asset)
	for _, balance := range account.Balances {
		if balance.Asset != asset {
			continue
		}
		free, err := strconv.ParseFloat(balance.Free, 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable binance balance %q: %w", balance.Free, err)
		}
		return free, nil
	}
	return 0, nil
}

type binanceOrderResponse struct {
	Symbol  string `json:"symbol"`
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

func (c *BinanceClient) SubmitMarketOrder(ctx context.Context, orderReq OrderRequest) (*OrderResult, error) {
	req := NewRequest(http.MethodPost, "/api/v3/order")
	req.Query.Set("symbol", c.normalizeSymbol(orderReq.Symbol))
	req.Query.Set("side", orderReq.Side)
	req.Query.Set("type", "MARKET")
	if orderReq.Side == SideBuy {
		req.Query.Set("quoteOrderQty", strconv.FormatFloat(orderReq.Notional, 'f', -1, 64))
	} else {
		req.Query.Set("quantity", strconv.FormatFloat(orderReq.Quantity, 'f', -1, 64))
	}
	c.signer.Sign(req, time.Now())

	var response binanceOrderResponse
	body, err := c.do(ctx, req, &response)
	if err != nil {
		return &OrderResult{Raw: body}, err
	}

	return &OrderResult{
		ExchangeOrderID: strconv.FormatInt(response.OrderID, 10),
		Raw:             body,
	}, nil
}
