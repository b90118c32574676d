package ports

import (
	"context"

	"github.com/alejandrodnm/convict/internal/domain"
)

// MarketSource is the external market-data collaborator. Only the
// request/response contract matters here; the wire protocol belongs to
// the adapter.
type MarketSource interface {
	// FetchMarkets returns the currently listed markets. Invalid payloads
	// are dropped by the adapter, never propagated partially.
	FetchMarkets(ctx context.Context) ([]domain.MarketSnapshot, error)

	// FetchMarket returns one market by id, including resolution fields
	// when the market has resolved.
	FetchMarket(ctx context.Context, id string) (domain.MarketSnapshot, error)
}
