package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/coinquorum/tradeengine/internal/risk"
)

// HTTPClient is the live implementation of Client. The exchange's wire
// format (cmt_*usdt symbols, type 1..4, order_type 0..3) is vendor-specific
// and is not the Binance futures API shape; no Binance SDK is used.
// HTTPClient talks to the opaque exchange HTTP
// API the spec treats as an external collaborator.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	secretKey  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *risk.CircuitBreakerManager
	logger     zerolog.Logger
}

// HTTPClientConfig configures a live exchange HTTP client.
type HTTPClientConfig struct {
	BaseURL      string
	APIKey       string
	SecretKey    string
	RateLimitRPS float64
	Timeout      time.Duration
}

// NewHTTPClient constructs a live Client bound to the configured exchange.
func NewHTTPClient(cfg HTTPClientConfig, logger zerolog.Logger) *HTTPClient {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
		breaker:    risk.NewCircuitBreakerManager(),
		logger:     logger.With().Str("component", "exchange.http").Logger(),
	}
}

// TransientError marks a retryable exchange failure (network/5xx/rate-limit).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient exchange error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	respBody, err := c.breaker.Exchange().Execute(func() (interface{}, error) {
		return c.doOnce(ctx, method, path, body)
	})
	c.breaker.Metrics().RecordRequest("exchange", err == nil)
	if err != nil {
		return err
	}

	raw, _ := respBody.([]byte)
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// doOnce performs a single HTTP round trip; it is the func passed to the
// exchange circuit breaker so a run of transient failures trips the breaker
// before validation errors (4xx, which are never retried) ever reach it.
func (c *HTTPClient) doOnce(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &TransientError{Err: fmt.Errorf("exchange returned %d: %s", resp.StatusCode, string(respBody))}
	}
	if resp.StatusCode >= 400 {
		return nil, newValidationError("http", "exchange returned %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func (c *HTTPClient) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	var t Ticker
	if err := c.do(ctx, http.MethodGet, "/api/v1/ticker?symbol="+symbol, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *HTTPClient) GetFundingRate(ctx context.Context, symbol string) (*FundingRate, error) {
	var f FundingRate
	if err := c.do(ctx, http.MethodGet, "/api/v1/funding-rate?symbol="+symbol, nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *HTTPClient) GetPositions(ctx context.Context) ([]RawPosition, error) {
	var positions []RawPosition
	if err := c.do(ctx, http.MethodGet, "/api/v1/positions", nil, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (c *HTTPClient) GetAccountAssets(ctx context.Context) (*AccountAssets, error) {
	var a AccountAssets
	if err := c.do(ctx, http.MethodGet, "/api/v1/account/assets", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) GetContracts(ctx context.Context) (map[string]Contract, error) {
	var contracts map[string]Contract
	if err := c.do(ctx, http.MethodGet, "/api/v1/contracts", nil, &contracts); err != nil {
		return nil, err
	}
	return contracts, nil
}

func (c *HTTPClient) PlaceOrder(ctx context.Context, order Order) (*OrderResult, error) {
	var result OrderResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/order", order, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) CloseAllPositions(ctx context.Context, symbol string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/position/close-all", map[string]string{"symbol": symbol}, nil)
}

func (c *HTTPClient) UploadAILog(ctx context.Context, entry AILogEntry) (*AILogUploadResult, error) {
	var result AILogUploadResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/ai-log", entry, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

var _ Client = (*HTTPClient)(nil)
