package telemetry

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/admission-gate/internal/messaging"
	"go.uber.org/zap"
)

// Store persists rejection events.
type Store interface {
	SaveRejection(ctx context.Context, event *RejectionEvent) error
}

// NewRejectionConsumer returns a consumer that saves every event from
// TopicRejected into store.
func NewRejectionConsumer(
	subscriber message.Subscriber, store Store, logger *zap.Logger,
) *messaging.Consumer[RejectionEvent] {
	return messaging.NewConsumer[RejectionEvent](subscriber, TopicRejected, store.SaveRejection, logger)
}
