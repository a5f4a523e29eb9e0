package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"coin-market-history/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.coingecko.com/api/v3"
	DefaultCurrency    = "usd"
	DefaultPageSize    = 100
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Client fetches market quotes from a CoinGecko-compatible markets endpoint.
type Client struct {
	baseURL     string
	currency    string
	pageSize    int
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithCurrency sets the vs_currency parameter.
func WithCurrency(currency string) ClientOption {
	return func(c *Client) {
		c.currency = currency
	}
}

// WithPageSize sets how many assets one fetch returns.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new markets API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     baseURL,
		currency:    DefaultCurrency,
		pageSize:    DefaultPageSize,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchQuotes retrieves one page of market quotes ordered by market cap.
// Transient failures are retried with exponential backoff; items with missing
// required fields are returned as-is and left to validation downstream.
func (c *Client) FetchQuotes(ctx context.Context) ([]domain.Quote, error) {
	endpoint := fmt.Sprintf("%s/coins/markets", c.baseURL)

	params := url.Values{}
	params.Set("vs_currency", c.currency)
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(c.pageSize))
	params.Set("page", "1")
	params.Set("sparkline", "false")

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		var tickers []marketTicker
		if err := json.Unmarshal(body, &tickers); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		quotes := make([]domain.Quote, len(tickers))
		for i, t := range tickers {
			quotes[i] = t.quote()
		}
		return quotes, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
