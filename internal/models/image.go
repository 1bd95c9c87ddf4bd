package models

import "time"

type Image struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerType string    `gorm:"size:20;not null;index:idx_images_owner" json:"owner_type"`
	OwnerID   uint      `gorm:"not null;index:idx_images_owner" json:"owner_id"`
	Path      string    `gorm:"size:500;not null" json:"path"`
	WebPPath  string    `gorm:"size:500" json:"webp_path,omitempty"`
	URL       string    `gorm:"-" json:"url"`
	WebPURL   string    `gorm:"-" json:"webp_url,omitempty"`
	Alt       string    `gorm:"size:255" json:"alt"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Bytes     int64     `json:"bytes"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}
