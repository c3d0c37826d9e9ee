package permission

import (
	"time"

	"gorm.io/datatypes"
)

// GrantMetadata records why a row holds its current status.
type GrantMetadata struct {
	Reason      string `json:"reason,omitempty"`
	SponsorID   string `json:"sponsor_id,omitempty"`
	CandidateID string `json:"candidate_id,omitempty"`
	PlanTier    string `json:"plan_tier,omitempty"`
	BlockedBy   string `json:"blocked_by,omitempty"`
	Renewals    int    `json:"renewals,omitempty"`
}

// MessagingPermission is one directed row per (requester, target) pair.
type MessagingPermission struct {
	ID                   string                            `gorm:"primaryKey;size:36"`
	RequesterID          string                            `gorm:"column:requester_id;size:36;not null;uniqueIndex:idx_messaging_permissions_pair,priority:1"`
	TargetID             string                            `gorm:"column:target_id;size:36;not null;uniqueIndex:idx_messaging_permissions_pair,priority:2;index"`
	Status               string                            `gorm:"column:status;size:20;not null;index:idx_messaging_permissions_status_expires,priority:1"`
	Kind                 string                            `gorm:"column:kind;size:30;not null"`
	RelatedJobID         *string                           `gorm:"column:related_job_id;size:36"`
	RelatedApplicationID *string                           `gorm:"column:related_application_id;size:36"`
	RequestMessage       *string                           `gorm:"column:request_message"`
	ResponseMessage      *string                           `gorm:"column:response_message"`
	ExpiresAt            time.Time                         `gorm:"column:expires_at;not null;index:idx_messaging_permissions_status_expires,priority:2"`
	IsActive             bool                              `gorm:"column:is_active;not null;default:false"`
	Metadata             datatypes.JSONType[GrantMetadata] `gorm:"column:metadata"`
	CreatedAt            time.Time                         `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt            time.Time                         `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (MessagingPermission) TableName() string {
	return "messaging_permissions"
}
