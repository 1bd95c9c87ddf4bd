package database

import (
	"context"
	"fmt"
	"time"

	"cabo/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// activeStatuses hold inventory; cancelled and completed bookings do not.
var activeStatuses = []string{models.StatusPending, models.StatusConfirmed}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if err := db.WithContext(ctx).Create(booking).Error; err != nil {
		return fmt.Errorf("failed to create booking: %w", translate(err))
	}
	return nil
}

// CreateBookingIfAvailable inserts a villa booking inside a transaction after
// re-checking for overlaps. On Postgres the villa row is locked first so
// concurrent requests for the same villa are serialized; SQLite allows a
// single writer at a time.
func (db *DB) CreateBookingIfAvailable(ctx context.Context, booking *models.Booking) (bool, error) {
	created := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockListing(tx, booking.ListingType, booking.ListingID); err != nil {
			return err
		}
		n, err := countOverlapping(tx, booking.ListingType, booking.ListingID, booking.CheckIn, booking.CheckOut)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Create(booking).Error; err != nil {
			return translate(err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to create booking: %w", err)
	}
	return created, nil
}

func lockListing(tx *gorm.DB, listingType string, listingID uint) error {
	if listingType != models.ListingVilla || tx.Dialector.Name() != "postgres" {
		return nil
	}
	var ids []uint
	err := tx.Model(&models.Villa{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", listingID).
		Pluck("id", &ids).Error
	if err != nil {
		return fmt.Errorf("failed to lock villa %d: %w", listingID, err)
	}
	return nil
}

// HasOverlap reports whether an active booking intersects [checkIn, checkOut).
func (db *DB) HasOverlap(ctx context.Context, listingType string, listingID uint, checkIn, checkOut time.Time) (bool, error) {
	n, err := countOverlapping(db.WithContext(ctx), listingType, listingID, checkIn, checkOut)
	return n > 0, err
}

func countOverlapping(tx *gorm.DB, listingType string, listingID uint, checkIn, checkOut time.Time) (int64, error) {
	var n int64
	err := tx.Model(&models.Booking{}).
		Where("listing_type = ? AND listing_id = ?", listingType, listingID).
		Where("status IN ?", activeStatuses).
		Where("check_in < ? AND check_out > ?", checkOut, checkIn).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to check overlap: %w", err)
	}
	return n, nil
}

func (db *DB) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	if err := db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (db *DB) GetBookingByReference(ctx context.Context, ref string) (*models.Booking, error) {
	var b models.Booking
	if err := db.WithContext(ctx).Where("reference = ?", ref).First(&b).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (db *DB) ListBookings(ctx context.Context, status string, limit, offset int) ([]models.Booking, int64, error) {
	q := db.WithContext(ctx).Model(&models.Booking{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var out []models.Booking
	if err := q.Order("check_in ASC, id ASC").Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return out, total, nil
}

// UpdateBookingStatus moves a booking from one status to another. It fails
// with ErrNotFound when the row is missing or its status changed meanwhile.
func (db *DB) UpdateBookingStatus(ctx context.Context, id uint, from, to string) error {
	res := db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to update booking status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) SetCheckoutURL(ctx context.Context, id uint, url, paymentRef string) error {
	return db.WithContext(ctx).Model(&models.Booking{}).Where("id = ?", id).
		Updates(map[string]interface{}{"checkout_url": url, "payment_ref": paymentRef}).Error
}

// PaymentOutcome says what MarkBookingPaid did with a payment.
type PaymentOutcome int

const (
	// PaymentDuplicate means the booking already had a payment recorded.
	PaymentDuplicate PaymentOutcome = iota
	// PaymentConfirmed means a pending booking was paid and confirmed.
	PaymentConfirmed
	// PaymentUnconfirmed means the payment was recorded on a booking that is
	// no longer pending. Its status is left alone and the deposit needs a refund.
	PaymentUnconfirmed
)

// MarkBookingPaid records a deposit payment. Only a pending booking is
// confirmed; a cancelled or completed one keeps its status so it never
// reclaims dates another booking may hold. Repeated deliveries are no-ops.
func (db *DB) MarkBookingPaid(ctx context.Context, ref, paymentRef string, at time.Time) (PaymentOutcome, error) {
	outcome := PaymentDuplicate
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("reference = ? AND paid_at IS NULL AND status = ?", ref, models.StatusPending).
			Updates(map[string]interface{}{
				"status":      models.StatusConfirmed,
				"payment_ref": paymentRef,
				"paid_at":     at,
				"updated_at":  at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			outcome = PaymentConfirmed
			return nil
		}
		res = tx.Model(&models.Booking{}).
			Where("reference = ? AND paid_at IS NULL", ref).
			Updates(map[string]interface{}{
				"payment_ref": paymentRef,
				"paid_at":     at,
				"updated_at":  at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			outcome = PaymentUnconfirmed
		}
		return nil
	})
	if err != nil {
		return PaymentDuplicate, fmt.Errorf("failed to mark booking paid: %w", err)
	}
	return outcome, nil
}

// BookingCounts groups bookings by status.
func (db *DB) BookingCounts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := db.WithContext(ctx).Model(&models.Booking{}).
		Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// ConfirmedRevenue sums totals of confirmed and completed bookings, in cents.
func (db *DB) ConfirmedRevenue(ctx context.Context) (int64, error) {
	var sum int64
	err := db.WithContext(ctx).Model(&models.Booking{}).
		Where("status IN ?", []string{models.StatusConfirmed, models.StatusCompleted}).
		Select("COALESCE(SUM(total_amount), 0)").Scan(&sum).Error
	return sum, err
}
