package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/messaging-permissions/internal/core/events"
)

type Sender interface {
	Send(job Job) error
}

type EventHandler struct {
	sender Sender
	logger *slog.Logger
}

func NewEventHandler(sender Sender, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		sender: sender,
		logger: logger,
	}
}

func (h *EventHandler) HandlePermissionEvent(ctx context.Context, event events.Event) error {
	permissionEvent, ok := event.(*events.PermissionEvent)
	if !ok {
		h.logger.Error("invalid event type for permission handler", "event_type", event.EventType())
		return fmt.Errorf("expected PermissionEvent, got %T", event)
	}

	if err := h.sender.Send(Job{Event: permissionEvent}); err != nil {
		return fmt.Errorf("queue notification %s: %w", permissionEvent.EventID(), err)
	}
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	for _, eventType := range events.PermissionEventTypes {
		eventBus.Subscribe(eventType, h.HandlePermissionEvent)
	}

	h.logger.Info("notification event handlers registered",
		"handlers", events.PermissionEventTypes)
}
