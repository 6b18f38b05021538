// Package binance is a small client for the Binance spot REST API and its
// market/user-data WebSocket streams. It covers what a single-symbol maker
// bot needs: signed LIMIT_MAKER orders, cancels, listen keys, kline and
// executionReport parsing.
//
// Usage example:
//
//	c := binance.NewClient(binance.Config{APIKey: key, APISecret: secret})
//	resp, err := c.NewOrder(ctx, binance.OrderRequest{
//	    Symbol: "DOGEFDUSD", Side: "BUY", Type: binance.OrderTypeLimitMaker,
//	    Price: decimal.RequireFromString("0.21000"), Quantity: decimal.NewFromInt(300),
//	})
//	if binance.IsWouldTake(err) { /* nudge and retry */ }
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL   = "https://api.binance.com"
	DefaultStreamURL = "wss://stream.binance.com:9443/ws"

	OrderTypeLimitMaker = "LIMIT_MAKER"

	// CodeOrderRejected is the error code Binance uses for rejected orders,
	// including LIMIT_MAKER orders that would take liquidity.
	CodeOrderRejected = -2010
)

// ---- Config & client ----

type Config struct {
	APIKey     string
	APISecret  string
	BaseURL    string        // default: https://api.binance.com
	RecvWindow time.Duration // default: 5s
	Timeout    time.Duration // default: 7s
	Debug      bool
}

type Client struct {
	apiKey     string
	apiSecret  []byte
	baseURL    string
	recvWindow time.Duration
	debug      bool

	httpClient *http.Client
	now        func() time.Time
}

// NewClient builds a REST client. Unsigned endpoints work without keys.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  []byte(cfg.APISecret),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		recvWindow: cfg.RecvWindow,
		debug:      cfg.Debug,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// ---- Errors ----

// APIError is the error body returned by Binance: {"code":-2010,"msg":"..."}.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: code=%d status=%d: %s", e.Code, e.HTTPStatus, e.Msg)
}

// IsWouldTake reports whether err is a LIMIT_MAKER rejection because the
// order would immediately match.
func IsWouldTake(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeOrderRejected &&
		strings.Contains(strings.ToLower(apiErr.Msg), "immediately match")
}

// ---- Helpers ----

// signedQuery encodes q with timestamp and recvWindow and appends the
// HMAC-SHA256 signature of that exact string as the last parameter.
func (c *Client) signedQuery(q url.Values) string {
	q.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	q.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	enc := q.Encode()
	mac := hmac.New(sha256.New, c.apiSecret)
	mac.Write([]byte(enc))
	return enc + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

// doRequest sends a request and decodes a JSON response into out (if non-nil).
// Signed requests carry timestamp, recvWindow and an HMAC-SHA256 signature.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, signed, keyed bool, out any) error {
	if params == nil {
		params = url.Values{}
	}
	enc := params.Encode()
	if signed {
		enc = c.signedQuery(params)
	}

	reqURL := c.baseURL + path
	if enc != "" {
		reqURL += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return err
	}
	if signed || keyed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	if c.debug {
		log.Printf("[binance] request: %s %s", method, path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("binance: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if c.debug {
		log.Printf("[binance] response: code=%d body=%s", resp.StatusCode, raw)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		if jerr := json.Unmarshal(raw, apiErr); jerr != nil || apiErr.Msg == "" {
			apiErr.Msg = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("binance: couldn't parse JSON response: %w", err)
	}
	return nil
}

// ---- Orders ----

// OrderRequest is a new order. Price and Quantity must already respect the
// symbol's tick and lot filters.
type OrderRequest struct {
	Symbol           string
	Side             string // BUY or SELL
	Type             string // default LIMIT_MAKER
	Price            decimal.Decimal
	Quantity         decimal.Decimal
	NewClientOrderID string // generated when empty
}

// OrderResponse is the ACK/RESULT body of POST /api/v3/order.
type OrderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	Status        string `json:"status"`
	Side          string `json:"side"`
	Type          string `json:"type"`
}

// NewOrder places an order via POST /api/v3/order.
func (c *Client) NewOrder(ctx context.Context, o OrderRequest) (OrderResponse, error) {
	if o.Type == "" {
		o.Type = OrderTypeLimitMaker
	}
	if o.NewClientOrderID == "" {
		o.NewClientOrderID = NewClientOrderID()
	}

	q := url.Values{}
	q.Set("symbol", o.Symbol)
	q.Set("side", o.Side)
	q.Set("type", o.Type)
	q.Set("price", o.Price.String())
	q.Set("quantity", o.Quantity.String())
	q.Set("newClientOrderId", o.NewClientOrderID)
	q.Set("newOrderRespType", "RESULT")

	var resp OrderResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v3/order", q, true, true, &resp)
	return resp, err
}

// CancelOrder cancels an order by the client order ID it was placed with.
func (c *Client) CancelOrder(ctx context.Context, symbol, clientOrderID string) error {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("origClientOrderId", clientOrderID)
	return c.doRequest(ctx, http.MethodDelete, "/api/v3/order", q, true, true, nil)
}

// NewClientOrderID returns a fresh client order ID. Binance limits these to
// 36 characters from [a-zA-Z0-9-_].
func NewClientOrderID() string {
	return "grid-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// ---- User data stream ----

// NewListenKey opens a user-data stream and returns its listen key.
func (c *Client) NewListenKey(ctx context.Context) (string, error) {
	var out struct {
		ListenKey string `json:"listenKey"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v3/userDataStream", nil, false, true, &out); err != nil {
		return "", err
	}
	if out.ListenKey == "" {
		return "", errors.New("binance: empty listen key")
	}
	return out.ListenKey, nil
}

// KeepAliveListenKey extends a listen key's validity by 60 minutes.
func (c *Client) KeepAliveListenKey(ctx context.Context, key string) error {
	q := url.Values{}
	q.Set("listenKey", key)
	return c.doRequest(ctx, http.MethodPut, "/api/v3/userDataStream", q, false, true, nil)
}

// CloseListenKey closes a user-data stream.
func (c *Client) CloseListenKey(ctx context.Context, key string) error {
	q := url.Values{}
	q.Set("listenKey", key)
	return c.doRequest(ctx, http.MethodDelete, "/api/v3/userDataStream", q, false, true, nil)
}
