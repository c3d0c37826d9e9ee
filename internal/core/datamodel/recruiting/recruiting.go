package recruiting

import "time"

// Job and Application are owned by the recruiting side of the platform.
// This service only reads them.
type Job struct {
	ID         string    `gorm:"primaryKey;size:36"`
	EmployerID string    `gorm:"column:employer_id;size:36;not null;index"`
	Title      string    `gorm:"column:title;not null"`
	Status     string    `gorm:"column:status;size:20;not null;default:open"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

type Application struct {
	ID          string    `gorm:"primaryKey;size:36"`
	JobID       string    `gorm:"column:job_id;size:36;not null;index"`
	CandidateID string    `gorm:"column:candidate_id;size:36;not null;index"`
	Status      string    `gorm:"column:status;size:20;not null;default:submitted"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Application) TableName() string {
	return "applications"
}
