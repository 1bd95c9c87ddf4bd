package models

import "time"

type GuideSubmission struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	GuideSlug   string    `gorm:"size:160;not null;index" json:"guide_slug"`
	FirstName   string    `gorm:"size:80;not null" json:"first_name"`
	Email       string    `gorm:"size:255;not null;index" json:"email"`
	Phone       string    `gorm:"size:40" json:"phone"`
	UTMSource   string    `gorm:"size:120" json:"utm_source"`
	UTMMedium   string    `gorm:"size:120" json:"utm_medium"`
	UTMCampaign string    `gorm:"size:120" json:"utm_campaign"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
