package permission

import (
	"context"
	"log/slog"
	"time"
)

type notifier struct {
	sink   NotificationSink
	logger *slog.Logger
}

func newNotifier(sink NotificationSink, logger *slog.Logger) *notifier {
	return &notifier{sink: sink, logger: logger}
}

func (n *notifier) send(ctx context.Context, notification Notification) {
	if n.sink == nil {
		return
	}
	if err := n.sink.Notify(ctx, notification); err != nil {
		n.logger.Warn("failed to send notification",
			"type", notification.Type,
			"recipient_id", notification.RecipientID,
			"permission_id", notification.PermissionID,
			"error", err,
		)
	}
}

func notificationFor(t NotificationType, recipientID string, p *Permission, now time.Time) Notification {
	n := Notification{
		Type:         t,
		RecipientID:  recipientID,
		PermissionID: p.ID,
		RequesterID:  p.RequesterID,
		TargetID:     p.TargetID,
		Status:       p.Status,
		OccurredAt:   now,
	}
	switch t {
	case NotificationRequested:
		n.Message = cloneString(p.RequestMessage)
	case NotificationResponded:
		n.Message = cloneString(p.ResponseMessage)
	}
	return n
}
