package telemetry

import (
	"time"

	"github.com/google/uuid"
	"github.com/serroba/admission-gate/internal/ratelimit"
)

// TopicRejected carries one RejectionEvent per rejected request.
const TopicRejected = "ratelimit.rejected"

// RejectionEvent records a request turned away by admission control.
type RejectionEvent struct {
	ID           string    `json:"id"`
	Identity     string    `json:"identity"`
	Strategy     string    `json:"strategy"`
	Path         string    `json:"path"`
	Method       string    `json:"method"`
	ClientIP     string    `json:"clientIp"`
	UserAgent    string    `json:"userAgent,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
	Limit        int64     `json:"limit"`
	ResetAfterMs int64     `json:"resetAfterMs"`
	RejectedAt   time.Time `json:"rejectedAt"`
}

// NewRejectionEvent builds the event for a rejected decision.
func NewRejectionEvent(
	decision ratelimit.Decision, meta ratelimit.RequestMeta, method, path string, at time.Time,
) *RejectionEvent {
	return &RejectionEvent{
		ID:           uuid.NewString(),
		Identity:     decision.Identity,
		Strategy:     string(decision.Strategy),
		Path:         path,
		Method:       method,
		ClientIP:     meta.ClientIP,
		UserAgent:    meta.UserAgent,
		RequestID:    meta.RequestID,
		Limit:        decision.Limit,
		ResetAfterMs: decision.ResetAfter.Milliseconds(),
		RejectedAt:   at.UTC(),
	}
}
