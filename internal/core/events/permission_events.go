package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePermissionRequested = "permission.requested"
	EventTypePermissionResponded = "permission.responded"
	EventTypePermissionRenewed   = "permission.renewed"
	EventTypePermissionExpired   = "permission.expired"
)

// PermissionEventTypes lists every event the messaging engine emits.
var PermissionEventTypes = []string{
	EventTypePermissionRequested,
	EventTypePermissionResponded,
	EventTypePermissionRenewed,
	EventTypePermissionExpired,
}

type PermissionEvent struct {
	BaseEvent
	RecipientID  string  `json:"recipient_id"`
	PermissionID string  `json:"permission_id"`
	RequesterID  string  `json:"requester_id"`
	TargetID     string  `json:"target_id"`
	Status       string  `json:"status"`
	Message      *string `json:"message,omitempty"`
}

type PermissionEventInput struct {
	Type         string
	RecipientID  string
	PermissionID string
	RequesterID  string
	TargetID     string
	Status       string
	Message      *string
	OccurredAt   time.Time
}

func NewPermissionEvent(in PermissionEventInput) *PermissionEvent {
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	data := map[string]interface{}{
		"recipient_id":  in.RecipientID,
		"permission_id": in.PermissionID,
		"requester_id":  in.RequesterID,
		"target_id":     in.TargetID,
		"status":        in.Status,
	}
	if in.Message != nil {
		data["message"] = *in.Message
	}

	return &PermissionEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      in.Type,
			Timestamp: occurredAt,
			Data:      data,
		},
		RecipientID:  in.RecipientID,
		PermissionID: in.PermissionID,
		RequesterID:  in.RequesterID,
		TargetID:     in.TargetID,
		Status:       in.Status,
		Message:      in.Message,
	}
}
