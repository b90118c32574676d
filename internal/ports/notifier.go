package ports

import (
	"context"

	"github.com/alejandrodnm/convict/internal/domain"
)

// Notifier receives the per-cycle report. Implementations must not block
// the pipeline; errors are logged and ignored.
type Notifier interface {
	NotifyCycle(ctx context.Context, report domain.CycleReport) error
}
