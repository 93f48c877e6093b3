package controllers

import (
	"net/http"

	"github.com/brandops/platform-backend/api/responses"
	"github.com/brandops/platform-backend/api/validators"
	"github.com/brandops/platform-backend/internal/eventbus"
	pkgerrors "github.com/brandops/platform-backend/pkg/errors"
	"github.com/brandops/platform-backend/pkg/logger"
)

type publishEventInput struct {
	Name     string         `json:"name" validate:"required,min=3,max=200"`
	Payload  map[string]any `json:"payload,omitempty"`
	Severity string         `json:"severity,omitempty" validate:"omitempty,oneof=info warning critical"`
}

// PublishEvent accepts an external occurrence and puts it on the bus.
// Depth always starts at zero here; only the engine publishes derived events.
func PublishEvent(bus *eventbus.Bus, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input publishEventInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		brandID, err := brandFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		evtCtx := eventbus.EventContext{
			ActorID:  actorFromRequest(r),
			BrandID:  brandID,
			Source:   "api",
			Severity: input.Severity,
		}

		evt, err := bus.Publish(r.Context(), input.Name, input.Payload, evtCtx)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "publish rejected"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{
			"eventId":    evt.ID,
			"name":       evt.Name,
			"occurredAt": evt.OccurredAt,
		})
	}
}
