package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cryptofolio/config"
	"cryptofolio/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hmacSHA512Hex(secret, payload string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyGateIOSignature recomputes the multi-line string-to-sign the way
// the venue does and checks it against the SIGN header.
func verifyGateIOSignature(t *testing.T, r *http.Request, secret string, body []byte) {
	t.Helper()

	assert.Equal(t, "test_api_key", r.Header.Get("KEY"))
	timestamp := r.Header.Get("Timestamp")
	assert.NotEmpty(t, timestamp)

	bodyHash := sha512.Sum512(body)
	toSign := strings.Join([]string{
		r.Method,
		r.URL.Path,
		r.URL.RawQuery,
		hex.EncodeToString(bodyHash[:]),
		timestamp,
	}, "\n")
	assert.Equal(t, hmacSHA512Hex(secret, toSign), r.Header.Get("SIGN"))
}

func setupGateIOTest(handler http.Handler) (*GateIOClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	cfg := &config.Exchange{
		BaseURL:             server.URL,
		Timeout:             5 * time.Second,
		MaxRequestPerMinute: 600000,
	}
	client := NewGateIOClient(cfg, logger.NewNop(), Credentials{APIKey: "test_api_key", APISecret: "test_secret_key"})
	return client, server
}

func TestGateIOSigner(t *testing.T) {
	signer := &gateioSigner{creds: Credentials{APIKey: "test_api_key", APISecret: "test_secret_key"}}
	now := time.Unix(1717243200, 500000000)

	req := NewRequest(http.MethodGet, "/api/v4/spot/accounts")
	req.Query.Set("currency", "BTC")
	signer.Sign(req, now)

	// Sub-second precision is dropped: the timestamp is whole seconds.
	assert.Equal(t, "1717243200", req.Header.Get("Timestamp"))
	assert.Equal(t, "test_api_key", req.Header.Get("KEY"))
	assert.Equal(t, "currency=BTC", req.RawQuery)

	emptyBodyHash := sha512.Sum512(nil)
	toSign := strings.Join([]string{
		"GET",
		"/api/v4/spot/accounts",
		"currency=BTC",
		hex.EncodeToString(emptyBodyHash[:]),
		"1717243200",
	}, "\n")
	assert.Equal(t, hmacSHA512Hex("test_secret_key", toSign), req.Header.Get("SIGN"))
}

func TestGateIOClient_SpotPrice(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/spot/tickers", r.URL.Path)
		assert.Equal(t, "BTC_USDT", r.URL.Query().Get("currency_pair"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"currency_pair":"BTC_USDT","last":"64950.1","change_percentage":"2.1"}]`))
	})

	client, server := setupGateIOTest(handler)
	defer server.Close()

	price, err := client.SpotPrice(context.Background(), "BTC/USDT")
	assert.NoError(t, err)
	assert.Equal(t, 64950.1, price)
}

func TestGateIOClient_SpotPriceEmptyResponse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	client, server := setupGateIOTest(handler)
	defer server.Close()

	_, err := client.SpotPrice(context.Background(), "BTC/USDT")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no ticker")
}

func TestGateIOClient_Change24h(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"currency_pair":"ETH_USDT","last":"3400","change_percentage":"-5.75"}]`))
	})

	client, server := setupGateIOTest(handler)
	defer server.Close()

	change, err := client.Change24h(context.Background(), "ETH/USDT")
	assert.NoError(t, err)
	assert.Equal(t, -5.75, change)
}

func TestGateIOClient_AssetBalance(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/spot/accounts", r.URL.Path)
		assert.Equal(t, "BTC", r.URL.Query().Get("currency"))
		verifyGateIOSignature(t, r, "test_secret_key", nil)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"currency":"BTC","available":"0.25"}]`))
	})

	client, server := setupGateIOTest(handler)
	defer server.Close()

	balance, err := client.AssetBalance(context.Background(), "btc")
	assert.NoError(t, err)
	assert.Equal(t, 0.25, balance)
}

func TestGateIOClient_AssetBalanceUnknownAsset(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	client, server := setupGateIOTest(handler)
	defer server.Close()

	balance, err := client.AssetBalance(context.Background(), "DOGE")
	assert.NoError(t, err)
	assert.Equal(t, 0.0, balance)
}

func TestGateIOClient_AccountStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"label":"INVALID_KEY","message":"Invalid key provided"}`))
	})

	client, server := setupGateIOTest(handler)
	defer server.Close()

	err := client.AccountStatus(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.AuthFailure())
}

func TestGateIOClient_SubmitMarketOrder(t *testing.T) {
	t.Run("BuySizedByNotional", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v4/spot/orders", r.URL.Path)

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			verifyGateIOSignature(t, r, "test_secret_key", body)

			var payload map[string]string
			require.NoError(t, json.Unmarshal(body, &payload))
			assert.Equal(t, "BTC_USDT", payload["currency_pair"])
			assert.Equal(t, "market", payload["type"])
			assert.Equal(t, "buy", payload["side"])
			assert.Equal(t, "50", payload["amount"])
			assert.Equal(t, "ioc", payload["time_in_force"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"555","status":"closed"}`))
		})

		client, server := setupGateIOTest(handler)
		defer server.Close()

		result, err := client.SubmitMarketOrder(context.Background(), OrderRequest{
			Symbol:   "BTC/USDT",
			Side:     SideBuy,
			Notional: 50,
		})
		assert.NoError(t, err)
		assert.Equal(t, "555", result.ExchangeOrderID)
	})

	t.Run("SellSizedByQuantity", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)

			var payload map[string]string
			require.NoError(t, json.Unmarshal(body, &payload))
			assert.Equal(t, "sell", payload["side"])
			assert.Equal(t, "0.00123", payload["amount"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"556","status":"closed"}`))
		})

		client, server := setupGateIOTest(handler)
		defer server.Close()

		result, err := client.SubmitMarketOrder(context.Background(), OrderRequest{
			Symbol:   "BTC/USDT",
			Side:     SideSell,
			Quantity: 0.00123,
		})
		assert.NoError(t, err)
		assert.Equal(t, "556", result.ExchangeOrderID)
	})

	t.Run("RejectionKeepsRawBody", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"label":"BALANCE_NOT_ENOUGH","message":"Not enough balance"}`))
		})

		client, server := setupGateIOTest(handler)
		defer server.Close()

		result, err := client.SubmitMarketOrder(context.Background(), OrderRequest{Symbol: "BTC/USDT", Side: SideBuy, Notional: 50})
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.False(t, apiErr.AuthFailure())
		assert.Contains(t, string(result.Raw), "BALANCE_NOT_ENOUGH")
	})
}

func TestGateIOClient_NormalizeSymbol(t *testing.T) {
	client := &GateIOClient{}
	assert.Equal(t, "BTC_USDT", client.normalizeSymbol("BTC/USDT"))
	assert.Equal(t, "BTC_USDT", client.normalizeSymbol("btc-usdt"))
	assert.Equal(t, "BTC_USDT", client.normalizeSymbol("BTC_USDT"))
}
