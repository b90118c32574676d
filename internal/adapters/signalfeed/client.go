package signalfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/convict/internal/domain"
)

const feedRatePerSec = 2

// Client pulls per-market signal events from the collector service. Only
// the output shape matters here: the collectors themselves (news, Reddit)
// live behind this endpoint. Implements ports.SignalSource.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
	since   time.Time
}

// NewClient creates a Client against the given base URL.
func NewClient(base string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(feedRatePerSec, 2),
	}
}

type signalDTO struct {
	MarketID   string  `json:"market_id"`
	Strength   float64 `json:"strength"`
	Source     string  `json:"source"`
	ObservedAt string  `json:"observed_at"`
}

// FetchSignals returns the signal events observed since the previous
// fetch. Events with no market id or a strength outside [-1,1] are
// dropped; a failed fetch is transient and the cursor does not advance.
func (c *Client) FetchSignals(ctx context.Context) ([]domain.Signal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("signalfeed.FetchSignals: rate limiter: %w", err)
	}

	u := c.base + "/signals"
	if !c.since.IsZero() {
		u += "?since=" + url.QueryEscape(strconv.FormatInt(c.since.Unix(), 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("signalfeed.FetchSignals: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signalfeed.FetchSignals: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signalfeed.FetchSignals: status %d", resp.StatusCode)
	}

	var raw []signalDTO
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("signalfeed.FetchSignals: decode: %w", err)
	}

	now := time.Now()
	signals := make([]domain.Signal, 0, len(raw))
	for _, r := range raw {
		if r.MarketID == "" || r.Strength < -1 || r.Strength > 1 {
			continue
		}
		s := domain.Signal{
			MarketID:   r.MarketID,
			Strength:   r.Strength,
			Source:     r.Source,
			ObservedAt: now,
		}
		if t, err := time.Parse(time.RFC3339, r.ObservedAt); err == nil {
			s.ObservedAt = t
		}
		signals = append(signals, s)
	}

	c.since = now
	return signals, nil
}
