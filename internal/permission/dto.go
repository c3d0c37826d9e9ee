package permission

// CreateRequestDTO is the body of POST /messaging/requests.
type CreateRequestDTO struct {
	TargetID     string  `json:"target_id" validate:"required,max=36"`
	Message      *string `json:"message,omitempty" validate:"omitempty,max=1000"`
	RelatedJobID *string `json:"related_job_id,omitempty" validate:"omitempty,max=36"`
	TTLDays      int     `json:"ttl_days,omitempty" validate:"omitempty,min=1,max=365"`
}

// RespondDTO is the body of PATCH /messaging/requests/{id}.
type RespondDTO struct {
	Decision        string  `json:"decision" validate:"required,oneof=approved rejected blocked"`
	ResponseMessage *string `json:"response_message,omitempty" validate:"omitempty,max=1000"`
}

type RenewalResultDTO struct {
	RenewedCount int `json:"renewed_count"`
}

type SweepResultDTO struct {
	RejectedCount int64 `json:"rejected_count"`
}

type PermissionListDTO struct {
	Permissions []*Permission `json:"permissions"`
	Total       int           `json:"total"`
}
