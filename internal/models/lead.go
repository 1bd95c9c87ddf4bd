package models

import (
	"time"

	"gorm.io/datatypes"
)

// Form types accepted by the lead capture endpoint.
const (
	FormContact       = "contact"
	FormVillaInquiry  = "villa_inquiry"
	FormFamilyTrip    = "family_trip"
	FormAdventure     = "adventure"
	FormConcierge     = "concierge"
	FormWedding       = "wedding"
	FormGuideDownload = "guide_download"
)

type Lead struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	PublicID      string            `gorm:"size:36;uniqueIndex;not null" json:"public_id"`
	FormType      string            `gorm:"size:32;not null;index" json:"form_type"`
	FirstName     string            `gorm:"size:80;not null" json:"first_name"`
	LastName      string            `gorm:"size:80" json:"last_name"`
	Email         string            `gorm:"size:255;not null;index" json:"email"`
	Phone         string            `gorm:"size:40" json:"phone"`
	Interest      string            `gorm:"size:255" json:"interest"`
	ArrivalDate   *time.Time        `json:"arrival_date,omitempty"`
	DepartureDate *time.Time        `json:"departure_date,omitempty"`
	Adults        int               `json:"adults"`
	Children      int               `json:"children"`
	ChildrenAges  datatypes.JSON    `json:"children_ages,omitempty"`
	Budget        string            `gorm:"size:80" json:"budget"`
	Message       string            `gorm:"type:text" json:"message"`
	UTMSource     string            `gorm:"size:120" json:"utm_source"`
	UTMMedium     string            `gorm:"size:120" json:"utm_medium"`
	UTMCampaign   string            `gorm:"size:120" json:"utm_campaign"`
	Extra         datatypes.JSONMap `json:"extra,omitempty"`
	Status        string            `gorm:"size:20;not null;index" json:"status"`
	ForwardedAt   *time.Time        `json:"forwarded_at,omitempty"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// FullName joins first and last name.
func (l *Lead) FullName() string {
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

// LeadFilter is used by the admin lead list.
type LeadFilter struct {
	Status   string
	FormType string
	Since    time.Time
	Limit    int
	Offset   int
}

// LeadStats feeds the admin dashboard.
type LeadStats struct {
	Total      int64            `json:"total"`
	LastWeek   int64            `json:"last_week"`
	ByFormType map[string]int64 `json:"by_form_type"`
}
