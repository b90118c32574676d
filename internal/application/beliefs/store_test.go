package beliefs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/convict/internal/adapters/storage"
	"github.com/alejandrodnm/convict/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *storage.SQLiteStorage) {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(Config{MaxStep: 5, SignalHistory: 50}, db), db
}

func openMarket(id string, price float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		ID:        id,
		Question:  "test market",
		Category:  domain.CategorySports,
		Price:     price,
		Liquidity: 1000,
		ClosesAt:  time.Now().Add(72 * time.Hour),
	}
}

func TestObserve_CreatesBelief(t *testing.T) {
	s, _ := newTestStore(t)

	b, err := s.Observe(context.Background(), openMarket("mkt-1", 50), nil)

	require.NoError(t, err)
	assert.Equal(t, 38.0, b.Low)
	assert.Equal(t, 62.0, b.High)
	assert.Equal(t, 50.0, b.Confidence)
	assert.Equal(t, 1, s.Len())
}

func TestObserve_IntervalInvariantHolds(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	m := openMarket("mkt-1", 90)

	for i := 0; i < 40; i++ {
		sig := []domain.Signal{{MarketID: "mkt-1", Strength: 1, Source: "news"}}
		b, err := s.Observe(ctx, m, sig)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, b.Low, 0.0)
		assert.LessOrEqual(t, b.Low, b.High)
		assert.LessOrEqual(t, b.High, 100.0)
	}
}

func TestObserve_MaxStepBoundsMovement(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.Observe(ctx, openMarket("mkt-1", 50), nil)
	require.NoError(t, err)

	// A later observation at a wildly different price with saturated
	// signals must still move the interval by at most MaxStep.
	second, err := s.Observe(ctx, openMarket("mkt-1", 95), []domain.Signal{
		{MarketID: "mkt-1", Strength: 1}, {MarketID: "mkt-1", Strength: 1},
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, second.Low-first.Low, 5.0)
	assert.LessOrEqual(t, second.High-first.High, 5.0)
}

func TestObserve_ConfidenceMonotone(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	m := openMarket("mkt-1", 50)

	prev, err := s.Observe(ctx, m, nil)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		b, err := s.Observe(ctx, m, []domain.Signal{{MarketID: "mkt-1", Strength: 0.2}})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, b.Confidence, prev.Confidence)
		assert.LessOrEqual(t, b.Confidence, 100.0)
		prev = b
	}
}

func TestObserve_SignalHistoryWindow(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	m := openMarket("mkt-1", 50)

	for i := 0; i < 60; i++ {
		_, err := s.Observe(ctx, m, []domain.Signal{
			{MarketID: "mkt-1", Strength: 0.1, Source: fmt.Sprintf("sig-%d", i)},
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 50, s.SignalCount("mkt-1"))

	// The retained window must be the 50 most recent entries in order.
	sigs := s.Signals("mkt-1")
	require.Len(t, sigs, 50)
	assert.Equal(t, "sig-10", sigs[0].Source)
	assert.Equal(t, "sig-59", sigs[49].Source)
}

func TestObserve_NeverCreatesForUntradableMarket(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	closed := openMarket("mkt-1", 50)
	closed.ClosesAt = time.Now().Add(-time.Hour)
	_, err := s.Observe(ctx, closed, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketState)

	noPrice := openMarket("mkt-2", 0)
	_, err = s.Observe(ctx, noPrice, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketState)

	assert.Equal(t, 0, s.Len())
}

func TestObserve_EvictedMarketFails(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	m := openMarket("mkt-1", 50)
	_, err := s.Observe(ctx, m, nil)
	require.NoError(t, err)

	// Market resolves; governor sweep evicts it.
	resolved := m
	now := time.Now()
	resolved.ResolvedAt = &now
	_, err = s.Observe(ctx, resolved, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.EvictStale(ctx, time.Now()))

	_, err = s.Observe(ctx, m, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketState)
	assert.Equal(t, 0, s.Len())
}

func TestEvictStale_PastCloseTime(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	m := openMarket("mkt-1", 50)
	m.ClosesAt = time.Now().Add(time.Minute)
	_, err := s.Observe(ctx, m, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, s.EvictStale(ctx, time.Now()))
	assert.Equal(t, 1, s.EvictStale(ctx, time.Now().Add(2*time.Minute)))
}

func TestAddUnknown_DedupedByDescription(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Observe(ctx, openMarket("mkt-1", 50), nil)
	require.NoError(t, err)

	u1, err := s.AddUnknown(ctx, "mkt-1", "injury report pending")
	require.NoError(t, err)
	u2, err := s.AddUnknown(ctx, "mkt-1", "injury report pending")
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)

	_, err = s.AddUnknown(ctx, "mkt-1", "venue may change")
	require.NoError(t, err)

	b, ok := s.Get("mkt-1")
	require.True(t, ok)
	assert.Len(t, b.Unknowns, 2)

	require.NoError(t, s.ResolveUnknown(ctx, "mkt-1", u1.ID))
	b, _ = s.Get("mkt-1")
	assert.Len(t, b.Unknowns, 1)
}

func TestAddUnknown_UntrackedMarket(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddUnknown(context.Background(), "nope", "anything")
	assert.ErrorIs(t, err, domain.ErrInvalidMarketState)
}

func TestRestore_RoundTrip(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	s1 := New(Config{MaxStep: 5, SignalHistory: 50}, db)
	_, err = s1.Observe(ctx, openMarket("mkt-1", 40), nil)
	require.NoError(t, err)
	_, err = s1.AddUnknown(ctx, "mkt-1", "open question")
	require.NoError(t, err)
	before, _ := s1.Get("mkt-1")

	// Fresh store over the same database: restart.
	s2 := New(Config{MaxStep: 5, SignalHistory: 50}, db)
	require.NoError(t, s2.Restore(ctx))

	after, ok := s2.Get("mkt-1")
	require.True(t, ok)
	assert.Equal(t, before.Low, after.Low)
	assert.Equal(t, before.High, after.High)
	assert.Equal(t, before.Confidence, after.Confidence)
	require.Len(t, after.Unknowns, 1)
	assert.Equal(t, "open question", after.Unknowns[0].Description)
}
