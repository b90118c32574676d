package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/convict/internal/domain"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testPosition(id, marketID string) domain.Position {
	return domain.Position{
		ID:         id,
		MarketID:   marketID,
		Question:   "Will BTC close above 100k?",
		Category:   domain.CategoryCrypto,
		Side:       domain.SideYes,
		EntryPrice: 45,
		BeliefLow:  60,
		BeliefHigh: 70,
		Edge:       15,
		Size:       20,
		EntryAt:    time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		Status:     domain.StatusOpen,
	}
}

func TestPositions_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	p := testPosition("pos-1", "mkt-1")
	require.NoError(t, s.SavePosition(ctx, p))

	open, err := s.GetOpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, p, open[0])

	resolved, err := s.GetResolvedPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestMarkResolved_OneWay(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	p := testPosition("pos-1", "mkt-1")
	require.NoError(t, s.SavePosition(ctx, p))

	exit, pnl := 100.0, 11.0
	exitAt := time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)
	p.Status = domain.StatusWin
	p.ExitPrice = &exit
	p.PnL = &pnl
	p.ExitAt = &exitAt
	require.NoError(t, s.MarkResolved(ctx, p))

	resolved, err := s.GetResolvedPositions(ctx)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, domain.StatusWin, resolved[0].Status)
	require.NotNil(t, resolved[0].PnL)
	assert.Equal(t, 11.0, *resolved[0].PnL)

	// A second resolve on a terminal row must not change anything.
	worse := -99.0
	p.PnL = &worse
	p.Status = domain.StatusLoss
	require.NoError(t, s.MarkResolved(ctx, p))

	resolved, err = s.GetResolvedPositions(ctx)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, domain.StatusWin, resolved[0].Status)
	assert.Equal(t, 11.0, *resolved[0].PnL)
}

func TestMarkResolved_MissingTerminalFields(t *testing.T) {
	s := newTestStorage(t)

	p := testPosition("pos-1", "mkt-1")
	p.Status = domain.StatusWin
	err := s.MarkResolved(context.Background(), p)
	assert.Error(t, err)
}

func TestBeliefs_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	b := domain.Belief{
		MarketID:   "mkt-1",
		Low:        40,
		High:       55,
		Confidence: 72,
		Unknowns: []domain.Unknown{
			{ID: "u-1", Description: "weather model disagreement", AddedAt: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)},
			{ID: "u-2", Description: "polling gap in key region", AddedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
		},
		LastUpdated: time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveBelief(ctx, b))

	got, err := s.GetBeliefs(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b, got[0])
}

func TestBeliefs_UpsertReplacesUnknowns(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	b := domain.Belief{
		MarketID: "mkt-1", Low: 40, High: 55, Confidence: 72,
		Unknowns:    []domain.Unknown{{ID: "u-1", Description: "first", AddedAt: time.Now().UTC().Truncate(time.Second)}},
		LastUpdated: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveBelief(ctx, b))

	b.Low, b.High = 45, 58
	b.Unknowns = append(b.Unknowns, domain.Unknown{
		ID: "u-2", Description: "second", AddedAt: time.Now().UTC().Truncate(time.Second),
	})
	require.NoError(t, s.SaveBelief(ctx, b))

	got, err := s.GetBeliefs(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 45.0, got[0].Low)
	assert.Len(t, got[0].Unknowns, 2)
}

func TestDeleteBelief(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	b := domain.Belief{
		MarketID: "mkt-1", Low: 40, High: 55, Confidence: 72,
		Unknowns:    []domain.Unknown{{ID: "u-1", Description: "gone", AddedAt: time.Now().UTC().Truncate(time.Second)}},
		LastUpdated: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveBelief(ctx, b))
	require.NoError(t, s.DeleteBelief(ctx, "mkt-1"))

	got, err := s.GetBeliefs(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
