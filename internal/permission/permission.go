package permission

import (
	"time"

	"gorm.io/datatypes"

	datamodel "github.com/frahmantamala/messaging-permissions/internal/core/datamodel/permission"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusBlocked  Status = "blocked"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusBlocked:
		return true
	}
	return false
}

type Kind string

const (
	KindExplicit         Kind = "explicit"
	KindAutoRelationship Kind = "auto_relationship"
)

type GrantReason string

const (
	ReasonRequest      GrantReason = "request"
	ReasonApplication  GrantReason = "application"
	ReasonSubscription GrantReason = "subscription"
	ReasonBlock        GrantReason = "block"
	ReasonUnblock      GrantReason = "unblock"
)

type Metadata struct {
	Reason      GrantReason `json:"reason,omitempty"`
	SponsorID   string      `json:"sponsor_id,omitempty"`
	CandidateID string      `json:"candidate_id,omitempty"`
	PlanTier    string      `json:"plan_tier,omitempty"`
	BlockedBy   string      `json:"blocked_by,omitempty"`
	Renewals    int         `json:"renewals,omitempty"`
}

// Permission is the directed grant allowing RequesterID to message TargetID.
type Permission struct {
	ID                   string    `json:"id"`
	RequesterID          string    `json:"requester_id"`
	TargetID             string    `json:"target_id"`
	Status               Status    `json:"status"`
	Kind                 Kind      `json:"kind"`
	RelatedJobID         *string   `json:"related_job_id,omitempty"`
	RelatedApplicationID *string   `json:"related_application_id,omitempty"`
	RequestMessage       *string   `json:"request_message,omitempty"`
	ResponseMessage      *string   `json:"response_message,omitempty"`
	ExpiresAt            time.Time `json:"expires_at"`
	IsActive             bool      `json:"is_active"`
	Metadata             Metadata  `json:"metadata"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Pair identifies a directed (requester, target) slot.
type Pair struct {
	RequesterID string
	TargetID    string
}

func (p Pair) Reverse() Pair {
	return Pair{RequesterID: p.TargetID, TargetID: p.RequesterID}
}

func (p *Permission) Pair() Pair {
	return Pair{RequesterID: p.RequesterID, TargetID: p.TargetID}
}

// Expired reports whether the grant's window has closed at now. A grant is
// valid only while now < ExpiresAt.
func (p *Permission) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Usable reports whether the grant currently allows messaging.
func (p *Permission) Usable(now time.Time) bool {
	return p.Status == StatusApproved && !p.Expired(now)
}

func (p *Permission) Clone() *Permission {
	if p == nil {
		return nil
	}
	c := *p
	c.RelatedJobID = cloneString(p.RelatedJobID)
	c.RelatedApplicationID = cloneString(p.RelatedApplicationID)
	c.RequestMessage = cloneString(p.RequestMessage)
	c.ResponseMessage = cloneString(p.ResponseMessage)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Stats summarises one user's permission rows.
type Stats struct {
	IncomingPending int `json:"incoming_pending"`
	OutgoingPending int `json:"outgoing_pending"`
	Active          int `json:"active"`
	Blocked         int `json:"blocked"`
}

// TraceStep records one precedence tier visited by CanMessage.
type TraceStep struct {
	Tier    string `json:"tier"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// Decision is the result of a CanMessage evaluation. A denial is a normal
// result, not an error.
type Decision struct {
	Allowed    bool        `json:"allowed"`
	Reason     string      `json:"reason"`
	Permission *Permission `json:"permission,omitempty"`
	Trace      []TraceStep `json:"trace,omitempty"`
}

func ToDataModel(p *Permission) *datamodel.MessagingPermission {
	return &datamodel.MessagingPermission{
		ID:                   p.ID,
		RequesterID:          p.RequesterID,
		TargetID:             p.TargetID,
		Status:               string(p.Status),
		Kind:                 string(p.Kind),
		RelatedJobID:         p.RelatedJobID,
		RelatedApplicationID: p.RelatedApplicationID,
		RequestMessage:       p.RequestMessage,
		ResponseMessage:      p.ResponseMessage,
		ExpiresAt:            p.ExpiresAt,
		IsActive:             p.IsActive,
		Metadata: datatypes.NewJSONType(datamodel.GrantMetadata{
			Reason:      string(p.Metadata.Reason),
			SponsorID:   p.Metadata.SponsorID,
			CandidateID: p.Metadata.CandidateID,
			PlanTier:    p.Metadata.PlanTier,
			BlockedBy:   p.Metadata.BlockedBy,
			Renewals:    p.Metadata.Renewals,
		}),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func FromDataModel(m *datamodel.MessagingPermission) *Permission {
	meta := m.Metadata.Data()
	return &Permission{
		ID:                   m.ID,
		RequesterID:          m.RequesterID,
		TargetID:             m.TargetID,
		Status:               Status(m.Status),
		Kind:                 Kind(m.Kind),
		RelatedJobID:         m.RelatedJobID,
		RelatedApplicationID: m.RelatedApplicationID,
		RequestMessage:       m.RequestMessage,
		ResponseMessage:      m.ResponseMessage,
		ExpiresAt:            m.ExpiresAt,
		IsActive:             m.IsActive,
		Metadata: Metadata{
			Reason:      GrantReason(meta.Reason),
			SponsorID:   meta.SponsorID,
			CandidateID: meta.CandidateID,
			PlanTier:    meta.PlanTier,
			BlockedBy:   meta.BlockedBy,
			Renewals:    meta.Renewals,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
