package beliefs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/convict/internal/domain"
	"github.com/alejandrodnm/convict/internal/ports"
)

const (
	// Interval half-width for a market seen for the first time.
	initialHalfWidth = 12.0
	// Half-width the interval converges toward as observations accumulate.
	targetHalfWidth = 8.0
	// Maximum price shift implied by fully saturated signals.
	signalShiftScale = 15.0
	// Confidence of a freshly created belief.
	initialConfidence = 50.0
	// How long an evicted market id is remembered, so late updates fail
	// with ErrInvalidMarketState instead of silently recreating state.
	evictionMemory = 24 * time.Hour
)

// Config controls belief update dynamics and memory bounds.
type Config struct {
	MaxStep       float64 // max interval movement per observation, in points
	SignalHistory int     // retained signals per market (sliding window)
}

type entry struct {
	belief      domain.Belief
	signals     []domain.Signal
	snapshot    domain.MarketSnapshot // last observed market state
	lastChecked time.Time
}

// Store owns all per-market beliefs. It is the only component that
// mutates them; everyone else sees value snapshots. Beliefs are persisted
// after each update so a restart reproduces identical intervals.
type Store struct {
	mu      sync.Mutex
	cfg     Config
	storage ports.BeliefStorage
	entries map[string]*entry
	evicted map[string]time.Time
}

// New creates an empty Store.
func New(cfg Config, storage ports.BeliefStorage) *Store {
	return &Store{
		cfg:     cfg,
		storage: storage,
		entries: make(map[string]*entry),
		evicted: make(map[string]time.Time),
	}
}

// Restore loads persisted beliefs. Signal histories start empty: signals
// are observations, not durable state.
func (s *Store) Restore(ctx context.Context) error {
	persisted, err := s.storage.GetBeliefs(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range persisted {
		s.entries[b.MarketID] = &entry{belief: b, lastChecked: b.LastUpdated}
	}
	if len(persisted) > 0 {
		slog.Info("belief store restored", "markets", len(persisted))
	}
	return nil
}

// Observe updates (or creates) the belief for a market from a price
// observation plus any signals that arrived since the last cycle.
//
// The interval nudges toward the signal-implied bounds by at most
// cfg.MaxStep per observation, so one noisy signal can never cause a
// discontinuous belief jump. Confidence grows monotonically with signal
// volume, saturating at 100.
func (s *Store) Observe(ctx context.Context, m domain.MarketSnapshot, signals []domain.Signal) (domain.Belief, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, gone := s.evicted[m.ID]; gone {
		return domain.Belief{}, domain.ErrInvalidMarketState
	}

	e, ok := s.entries[m.ID]
	if !ok {
		if !m.Tradable(now) {
			return domain.Belief{}, domain.ErrInvalidMarketState
		}
		e = &entry{
			belief: domain.Belief{
				MarketID:    m.ID,
				Low:         clamp(m.Price-initialHalfWidth, 0, 100),
				High:        clamp(m.Price+initialHalfWidth, 0, 100),
				Confidence:  initialConfidence,
				LastUpdated: now,
			},
		}
		s.entries[m.ID] = e
	} else {
		s.nudge(&e.belief, m, signals, now)
	}

	e.snapshot = m
	e.lastChecked = now
	e.signals = append(e.signals, signals...)
	if excess := len(e.signals) - s.cfg.SignalHistory; excess > 0 {
		e.signals = e.signals[excess:]
	}

	if err := s.storage.SaveBelief(ctx, e.belief); err != nil {
		slog.Warn("belief persist failed", "market", m.ID, "err", err)
	}
	return e.belief, nil
}

// nudge moves the interval toward the signal-implied bounds.
func (s *Store) nudge(b *domain.Belief, m domain.MarketSnapshot, signals []domain.Signal, now time.Time) {
	net := 0.0
	for _, sig := range signals {
		net += sig.Strength
	}
	net = clamp(net, -1, 1)

	center := clamp(m.Price+net*signalShiftScale, 0, 100)
	targetLow := clamp(center-targetHalfWidth, 0, 100)
	targetHigh := clamp(center+targetHalfWidth, 0, 100)

	b.Low = stepToward(b.Low, targetLow, s.cfg.MaxStep)
	b.High = stepToward(b.High, targetHigh, s.cfg.MaxStep)
	if b.Low > b.High {
		mid := (b.Low + b.High) / 2
		b.Low, b.High = mid, mid
	}

	gain := (1 + float64(len(signals))) * 1.5
	b.Confidence = clamp(b.Confidence+gain*(1-b.Confidence/100), 0, 100)
	b.LastUpdated = now
}

// AddUnknown appends an open question to a market's belief, deduplicated
// by description. Fails with ErrInvalidMarketState for untracked markets.
func (s *Store) AddUnknown(ctx context.Context, marketID, description string) (domain.Unknown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[marketID]
	if !ok {
		return domain.Unknown{}, domain.ErrInvalidMarketState
	}

	for _, u := range e.belief.Unknowns {
		if u.Description == description {
			return u, nil
		}
	}

	u := domain.Unknown{
		ID:          uuid.New().String(),
		Description: description,
		AddedAt:     time.Now(),
	}
	e.belief.Unknowns = append(e.belief.Unknowns, u)

	if err := s.storage.SaveBelief(ctx, e.belief); err != nil {
		slog.Warn("belief persist failed", "market", marketID, "err", err)
	}
	return u, nil
}

// ResolveUnknown is the explicit removal path for an answered question.
func (s *Store) ResolveUnknown(ctx context.Context, marketID, unknownID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[marketID]
	if !ok {
		return domain.ErrInvalidMarketState
	}

	kept := e.belief.Unknowns[:0]
	for _, u := range e.belief.Unknowns {
		if u.ID != unknownID {
			kept = append(kept, u)
		}
	}
	e.belief.Unknowns = kept

	if err := s.storage.SaveBelief(ctx, e.belief); err != nil {
		slog.Warn("belief persist failed", "market", marketID, "err", err)
	}
	return nil
}

// Get returns a snapshot of the belief for a market.
func (s *Store) Get(marketID string) (domain.Belief, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[marketID]
	if !ok {
		return domain.Belief{}, false
	}
	return e.belief, true
}

// SignalCount returns the retained signal history length for a market.
func (s *Store) SignalCount(marketID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[marketID]; ok {
		return len(e.signals)
	}
	return 0
}

// Signals returns a copy of the retained signal history for a market.
func (s *Store) Signals(marketID string) []domain.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[marketID]
	if !ok {
		return nil
	}
	out := make([]domain.Signal, len(e.signals))
	copy(out, e.signals)
	return out
}

// Len returns the number of tracked markets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Views builds the markets query surface, sorted by market id.
func (s *Store) Views() []domain.MarketView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]domain.MarketView, 0, len(s.entries))
	for id, e := range s.entries {
		views = append(views, domain.MarketView{
			MarketID:     id,
			Question:     e.snapshot.Question,
			Category:     e.snapshot.Category,
			CurrentPrice: e.snapshot.Price,
			Liquidity:    e.snapshot.Liquidity,
			ClosesAt:     e.snapshot.ClosesAt,
			Belief: domain.BeliefView{
				BeliefLow:   e.belief.Low,
				BeliefHigh:  e.belief.High,
				Confidence:  e.belief.Confidence,
				Unknowns:    e.belief.Unknowns,
				LastUpdated: e.belief.LastUpdated,
			},
			SignalCount: len(e.signals),
			LastChecked: e.lastChecked,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].MarketID < views[j].MarketID })
	return views
}

// EvictStale removes beliefs for markets that are closed, resolved, or
// past their close time, and forgets eviction records older than a day.
// This is the memory governor's sweep; it runs on its own timer and
// bounds steady-state memory under a large tracked-market fleet.
func (s *Store) EvictStale(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.entries {
		if e.snapshot.Resolved() || e.snapshot.Closed(now) {
			delete(s.entries, id)
			s.evicted[id] = now
			evicted++
			if err := s.storage.DeleteBelief(ctx, id); err != nil {
				slog.Warn("belief delete failed", "market", id, "err", err)
			}
		}
	}

	for id, at := range s.evicted {
		if now.Sub(at) > evictionMemory {
			delete(s.evicted, id)
		}
	}

	if evicted > 0 {
		slog.Debug("evicted stale beliefs", "count", evicted, "tracked", len(s.entries))
	}
	return evicted
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func stepToward(current, target, maxStep float64) float64 {
	delta := target - current
	if delta > maxStep {
		delta = maxStep
	}
	if delta < -maxStep {
		delta = -maxStep
	}
	return current + delta
}
