// Package events carries engine notifications to downstream consumers after
// a unit of work commits.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	RevisionSubmitted    Type = "revision.submitted"
	RevisionApproved     Type = "revision.approved"
	RevisionRejected     Type = "revision.rejected"
	RevisionNeedsChanges Type = "revision.needs_changes"
	HeadAdvanced         Type = "head.advanced"
	HeadSuperseded       Type = "head.superseded"
	QueueAssigned        Type = "queue.assigned"
	AssignmentCreated    Type = "assignment.created"
	ReviewCompleted      Type = "review.completed"
	ReviewEscalated      Type = "review.escalated"
	FlagRaised           Type = "flag.raised"
	FlagResolved         Type = "flag.resolved"
)

// Event is immutable once built. Payload values must be JSON encodable.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	DocumentID int64          `json:"documentId,omitempty"`
	RevisionID int64          `json:"revisionId,omitempty"`
	ActorID    string         `json:"actorId,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

func New(eventType Type, actorID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
	}
}

// Sink receives published events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Name() string
	Publish(ctx context.Context, event Event) error
}
