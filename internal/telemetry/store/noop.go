package store

import (
	"context"

	"github.com/serroba/admission-gate/internal/telemetry"
	"go.uber.org/zap"
)

// Noop is a telemetry.Store that only logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op rejection store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveRejection(_ context.Context, event *telemetry.RejectionEvent) error {
	n.logger.Info("rejection event received",
		zap.String("identity", event.Identity),
		zap.String("strategy", event.Strategy),
		zap.String("method", event.Method),
		zap.String("path", event.Path),
		zap.Int64("resetAfterMs", event.ResetAfterMs),
		zap.Time("rejectedAt", event.RejectedAt),
	)

	return nil
}
