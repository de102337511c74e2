package telemetry

import (
	"context"

	"github.com/serroba/admission-gate/internal/messaging"
)

// Publisher publishes rejection events.
type Publisher struct {
	publish messaging.Publish[RejectionEvent]
}

// NewPublisher creates a rejection publisher on top of group's publisher.
func NewPublisher(group *messaging.PublisherGroup) *Publisher {
	return &Publisher{
		publish: messaging.NewPublishFunc[RejectionEvent](group.Publisher(), TopicRejected),
	}
}

// PublishRejection publishes event on TopicRejected. The request id, if any,
// becomes the message correlation id.
func (p *Publisher) PublishRejection(ctx context.Context, event *RejectionEvent) error {
	if event.RequestID != "" {
		ctx = messaging.WithCorrelationID(ctx, event.RequestID)
	}

	return p.publish(ctx, event)
}
