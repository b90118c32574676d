package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/convict/internal/domain"
)

const (
	// Conservative limits: the list endpoint is polled once per cycle,
	// the detail endpoint once per open position per reconciliation pass.
	listRatePerSec   = 2
	detailRatePerSec = 10

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is the HTTP market-data client with rate limiting and retries.
// It implements ports.MarketSource.
type Client struct {
	http          *http.Client
	base          string
	listLimiter   *rate.Limiter
	detailLimiter *rate.Limiter
}

// NewClient creates a Client against the given base URL.
func NewClient(base string) *Client {
	return &Client{
		http:          &http.Client{Timeout: 10 * time.Second},
		base:          base,
		listLimiter:   rate.NewLimiter(listRatePerSec, 2),
		detailLimiter: rate.NewLimiter(detailRatePerSec, 20),
	}
}

// FetchMarkets returns all listed markets. Payloads that fail ingress
// validation are dropped with a warning rather than propagated partially.
func (c *Client) FetchMarkets(ctx context.Context) ([]domain.MarketSnapshot, error) {
	var raw []marketDTO
	if err := c.get(ctx, c.listLimiter, c.base+"/markets", &raw); err != nil {
		return nil, fmt.Errorf("marketdata.FetchMarkets: %w", err)
	}

	snapshots := make([]domain.MarketSnapshot, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		m, err := mapMarket(r)
		if err != nil {
			dropped++
			continue
		}
		snapshots = append(snapshots, m)
	}
	if dropped > 0 {
		slog.Warn("dropped invalid market payloads", "count", dropped)
	}
	return snapshots, nil
}

// FetchMarket returns one market by id, including resolution fields when
// the market has resolved.
func (c *Client) FetchMarket(ctx context.Context, id string) (domain.MarketSnapshot, error) {
	var raw marketDTO
	u := c.base + "/markets/" + url.PathEscape(id)
	if err := c.get(ctx, c.detailLimiter, u, &raw); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("marketdata.FetchMarket %s: %w", id, err)
	}

	m, err := mapMarket(raw)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("marketdata.FetchMarket %s: %w", id, err)
	}
	return m, nil
}

// get does a GET with rate limiting and retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry runs the request with exponential backoff. 429 and 5xx are
// retried; 4xx is terminal.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by market source", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff, respecting the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
