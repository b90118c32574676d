package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/convict/internal/domain"
)

func TestMapMarket_Valid(t *testing.T) {
	outcome := true
	m, err := mapMarket(marketDTO{
		ID:                "mkt-1",
		Question:          "Will it rain in Madrid tomorrow?",
		Category:          "weather",
		Price:             42.5,
		Liquidity:         1200,
		ClosesAt:          "2026-03-12T00:00:00Z",
		ResolvedAt:        "2026-03-12T06:00:00Z",
		ResolutionOutcome: &outcome,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.CategoryWeather, m.Category)
	assert.Equal(t, 42.5, m.Price)
	require.NotNil(t, m.Outcome)
	assert.True(t, *m.Outcome)
	require.NotNil(t, m.ResolvedAt)
	assert.True(t, m.Resolved())
}

func TestMapMarket_UnknownCategoryFallsToOther(t *testing.T) {
	m, err := mapMarket(marketDTO{ID: "mkt-1", Category: "geopolitics-ish", Price: 50})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryOther, m.Category)
}

func TestMapMarket_InvalidPayloads(t *testing.T) {
	cases := []struct {
		name string
		dto  marketDTO
	}{
		{"missing id", marketDTO{Price: 50}},
		{"price negative", marketDTO{ID: "m", Price: -1}},
		{"price above 100", marketDTO{ID: "m", Price: 101}},
		{"bad close timestamp", marketDTO{ID: "m", Price: 50, ClosesAt: "tomorrow"}},
		{"bad resolved timestamp", marketDTO{ID: "m", Price: 50, ResolvedAt: "later"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mapMarket(tc.dto)
			assert.ErrorIs(t, err, domain.ErrInvalidMarketState)
		})
	}
}
