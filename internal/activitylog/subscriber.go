package activitylog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/brandops/platform-backend/internal/eventbus"
	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/logger"
	"github.com/brandops/platform-backend/pkg/types"
)

// Subscriber persists every published envelope as an audit row. It registers
// on the wildcard channel; a failed write is logged by the bus and does not
// affect the publish or other subscribers.
type Subscriber struct {
	logg *logger.Logger
	repo Repository
}

// NewSubscriber builds the audit subscriber.
func NewSubscriber(logg *logger.Logger, repo Repository) (*Subscriber, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	return &Subscriber{logg: logg, repo: repo}, nil
}

// Register attaches the subscriber to the bus.
func (s *Subscriber) Register(bus *eventbus.Bus) {
	bus.SubscribeAll(s.Handle)
}

// Handle records one envelope.
func (s *Subscriber) Handle(ctx context.Context, evt eventbus.Envelope) error {
	entry := models.ActivityEntry{
		ID:         uuid.New(),
		EventID:    evt.ID,
		EventName:  evt.Name,
		BrandID:    evt.Context.BrandID,
		ActorID:    evt.Context.ActorID,
		Payload:    types.JSONMap(evt.Payload),
		OccurredAt: evt.OccurredAt,
	}
	if evt.Context.Source != "" {
		source := evt.Context.Source
		entry.Source = &source
	}
	if err := s.repo.Record(ctx, &entry); err != nil {
		return fmt.Errorf("record activity for %s: %w", evt.Name, err)
	}
	return nil
}
