package subscription

import "time"

type Subscription struct {
	ID               string     `gorm:"primaryKey;size:36"`
	UserID           string     `gorm:"column:user_id;size:36;not null;index"`
	Plan             string     `gorm:"column:plan;size:30;not null"`
	Status           string     `gorm:"column:status;size:20;not null"`
	MessagingEnabled bool       `gorm:"column:messaging_enabled;not null;default:false"`
	CurrentPeriodEnd *time.Time `gorm:"column:current_period_end"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
