package ports

import (
	"context"

	"github.com/alejandrodnm/convict/internal/domain"
)

// SignalSource emits opaque per-market signal events (news, social
// sentiment). The engine polls it once per cycle; a failed fetch is
// transient and the cycle proceeds on price observations alone.
type SignalSource interface {
	FetchSignals(ctx context.Context) ([]domain.Signal, error)
}
