package marketdata

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/convict/internal/domain"
)

// mapMarket validates a DTO and converts it to a domain snapshot.
// Markets with no id or a price outside [0,100] are invalid payloads.
func mapMarket(r marketDTO) (domain.MarketSnapshot, error) {
	if r.ID == "" {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: missing market id", domain.ErrInvalidMarketState)
	}
	if r.Price < 0 || r.Price > 100 {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: price %.2f out of range", domain.ErrInvalidMarketState, r.Price)
	}

	m := domain.MarketSnapshot{
		ID:        r.ID,
		Question:  r.Question,
		Category:  domain.ParseCategory(r.Category),
		Price:     r.Price,
		Liquidity: r.Liquidity,
		Outcome:   r.ResolutionOutcome,
	}

	if r.ClosesAt != "" {
		t, err := time.Parse(time.RFC3339, r.ClosesAt)
		if err != nil {
			return domain.MarketSnapshot{}, fmt.Errorf("%w: bad closesAt %q", domain.ErrInvalidMarketState, r.ClosesAt)
		}
		m.ClosesAt = t
	}
	if r.ResolvedAt != "" {
		t, err := time.Parse(time.RFC3339, r.ResolvedAt)
		if err != nil {
			return domain.MarketSnapshot{}, fmt.Errorf("%w: bad resolvedAt %q", domain.ErrInvalidMarketState, r.ResolvedAt)
		}
		m.ResolvedAt = &t
	}
	return m, nil
}
