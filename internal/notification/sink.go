package notification

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/messaging-permissions/internal/core/events"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
)

// Sink turns engine notifications into events on the bus. Subscribers decide
// how they reach the user.
type Sink struct {
	bus    *events.EventBus
	logger *slog.Logger
}

func NewSink(bus *events.EventBus, logger *slog.Logger) *Sink {
	return &Sink{bus: bus, logger: logger}
}

func (s *Sink) Notify(ctx context.Context, n permission.Notification) error {
	event := events.NewPermissionEvent(events.PermissionEventInput{
		Type:         string(n.Type),
		RecipientID:  n.RecipientID,
		PermissionID: n.PermissionID,
		RequesterID:  n.RequesterID,
		TargetID:     n.TargetID,
		Status:       string(n.Status),
		Message:      n.Message,
		OccurredAt:   n.OccurredAt,
	})

	s.logger.Debug("publishing permission notification",
		"type", n.Type,
		"recipient_id", n.RecipientID,
		"permission_id", n.PermissionID,
		"event_id", event.EventID())

	return s.bus.Publish(ctx, event)
}
