package ports

import (
	"context"

	"github.com/alejandrodnm/convict/internal/domain"
)

// LedgerStorage is the durable record store for positions, keyed by
// position id. Positions are inserted once at creation and updated once
// at resolution; they are never deleted.
type LedgerStorage interface {
	SavePosition(ctx context.Context, p domain.Position) error

	// MarkResolved persists the one-way OPEN → terminal transition.
	MarkResolved(ctx context.Context, p domain.Position) error

	GetOpenPositions(ctx context.Context) ([]domain.Position, error)
	GetResolvedPositions(ctx context.Context) ([]domain.Position, error)

	Close() error
}

// BeliefStorage persists belief snapshots keyed by market id so the
// belief store survives a restart.
type BeliefStorage interface {
	SaveBelief(ctx context.Context, b domain.Belief) error
	DeleteBelief(ctx context.Context, marketID string) error
	GetBeliefs(ctx context.Context) ([]domain.Belief, error)
}
