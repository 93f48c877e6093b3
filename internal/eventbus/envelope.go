package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// EventContext carries optional metadata attached to an envelope at publish time.
type EventContext struct {
	ActorID        *uuid.UUID `json:"actorId,omitempty"`
	BrandID        *uuid.UUID `json:"brandId,omitempty"`
	Source         string     `json:"source,omitempty"`
	Severity       string     `json:"severity,omitempty"`
	CausationDepth int        `json:"causationDepth,omitempty"`
}

// Envelope is the immutable record of a single occurrence published to the bus.
// The bus assigns ID and OccurredAt; subscribers must treat the envelope as read-only.
type Envelope struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Payload    map[string]any `json:"payload"`
	Context    EventContext   `json:"context"`
	OccurredAt time.Time      `json:"occurredAt"`
}
