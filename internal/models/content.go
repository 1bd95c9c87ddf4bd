package models

import (
	"time"

	"gorm.io/datatypes"
)

// Content kinds served by the public site.
const (
	KindVilla      = "villas"
	KindResort     = "resorts"
	KindAdventure  = "adventures"
	KindRestaurant = "restaurants"
)

// ContentBase holds the columns every listing page shares.
type ContentBase struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Slug        string         `gorm:"size:160;uniqueIndex;not null" json:"slug"`
	Name        string         `gorm:"size:255;not null" json:"name" binding:"required,max=255"`
	Summary     string         `gorm:"size:500" json:"summary"`
	Description string         `gorm:"type:text" json:"description"`
	Location    string         `gorm:"size:120;index" json:"location"`
	HeroImage   string         `gorm:"size:500" json:"hero_image"`
	Gallery     datatypes.JSON `json:"gallery,omitempty"`
	Featured    bool           `gorm:"index" json:"featured"`
	Published   bool           `gorm:"index" json:"published"`
	SortOrder   int            `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Base gives generic code access to the shared columns.
func (c *ContentBase) Base() *ContentBase { return c }

type Villa struct {
	ContentBase
	Bedrooms    int            `gorm:"not null;default:0;index" json:"bedrooms"`
	Bathrooms   float64        `gorm:"not null;default:0" json:"bathrooms"`
	MaxGuests   int            `gorm:"not null;default:0;index" json:"max_guests"`
	NightlyRate int64          `gorm:"not null;default:0" json:"nightly_rate"` // cents
	Amenities   datatypes.JSON `json:"amenities,omitempty"`
}

type Resort struct {
	ContentBase
	Stars        int            `gorm:"not null;default:0" json:"stars"`
	PriceFrom    int64          `gorm:"not null;default:0" json:"price_from"` // cents per night
	AllInclusive bool           `gorm:"not null;default:false" json:"all_inclusive"`
	Amenities    datatypes.JSON `json:"amenities,omitempty"`
}

type Adventure struct {
	ContentBase
	Category      string         `gorm:"size:80;index" json:"category"`
	DurationHours float64        `gorm:"not null;default:0" json:"duration_hours"`
	Price         int64          `gorm:"not null;default:0" json:"price"` // cents per person
	MinAge        int            `gorm:"not null;default:0" json:"min_age"`
	MaxGroup      int            `gorm:"not null;default:0" json:"max_group"`
	Includes      datatypes.JSON `json:"includes,omitempty"`
}

type Restaurant struct {
	ContentBase
	Cuisine      string `gorm:"size:80;index" json:"cuisine"`
	PriceLevel   int    `gorm:"not null;default:2" json:"price_level" binding:"omitempty,min=1,max=4"`
	Reservations bool   `gorm:"not null;default:false" json:"reservations"`
}

// ContentFilter narrows public listing queries. Zero values mean "any".
type ContentFilter struct {
	Location    string
	Search      string
	Featured    bool
	MinGuests   int
	MinBedrooms int
	Category    string
	Cuisine     string
	Unpublished bool
	Limit       int
	Offset      int
}

const (
	DefaultPageSize = 24
	MaxPageSize     = 100
)

// Normalize clamps paging values.
func (f ContentFilter) Normalize() ContentFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
