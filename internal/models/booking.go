package models

import "time"

const (
	ListingVilla     = "villa"
	ListingAdventure = "adventure"
)

type Booking struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Reference    string     `gorm:"size:32;uniqueIndex;not null" json:"reference"`
	ListingType  string     `gorm:"size:20;not null;index:idx_bookings_listing" json:"listing_type"`
	ListingID    uint       `gorm:"not null;index:idx_bookings_listing" json:"listing_id"`
	ListingName  string     `gorm:"size:255" json:"listing_name"`
	FirstName    string     `gorm:"size:80;not null" json:"first_name"`
	LastName     string     `gorm:"size:80" json:"last_name"`
	Email        string     `gorm:"size:255;not null;index" json:"email"`
	Phone        string     `gorm:"size:40" json:"phone"`
	CheckIn      time.Time  `gorm:"not null;index" json:"check_in"`
	CheckOut     time.Time  `gorm:"not null" json:"check_out"`
	Guests       int        `gorm:"not null" json:"guests"`
	TotalAmount  int64      `gorm:"not null" json:"total_amount"`
	Deposit      int64      `gorm:"not null" json:"deposit"`
	Currency     string     `gorm:"size:3;not null" json:"currency"`
	Status       string     `gorm:"size:20;not null;index" json:"status"`
	Notes        string     `gorm:"type:text" json:"notes,omitempty"`
	CheckoutURL  string     `gorm:"size:1000" json:"checkout_url,omitempty"`
	PaymentRef   string     `gorm:"size:255" json:"payment_ref,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Nights is the stay length for villa bookings; adventures are single-day.
func (b *Booking) Nights() int {
	d := b.CheckOut.Sub(b.CheckIn)
	if d <= 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
