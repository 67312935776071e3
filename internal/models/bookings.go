package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCancelled BookingStatus = "Cancelled"
)

const (
	BookingsDbName  = "eventease"
	BookingsColName = "bookings"

	MinSeatsPerBooking          = 1
	MaxSeatsPerBooking          = 2
	MaxCancellationReasonLength = 200
	DefaultCancellationReason   = "Cancelled by user"
)

type Booking struct {
	ID                 uuid.UUID     `bson:"_id" json:"id"`
	UserID             uuid.UUID     `bson:"user_id" json:"userId"`
	EventID            uuid.UUID     `bson:"event_id" json:"eventId"`
	NumberOfSeats      int           `bson:"number_of_seats" json:"numberOfSeats"`
	TotalAmount        float64       `bson:"total_amount" json:"totalAmount"`
	Status             BookingStatus `bson:"status" json:"status"`
	BookingDate        time.Time     `bson:"booking_date" json:"bookingDate"`
	CancelledAt        *time.Time    `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
	CancellationReason string        `bson:"cancellation_reason,omitempty" json:"cancellationReason,omitempty"`
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingConfirmed
}

func ValidSeatCount(seats int) bool {
	return seats >= MinSeatsPerBooking && seats <= MaxSeatsPerBooking
}

// NormalizeCancellationReason trims the reason, falls back to the default
// text and caps it at MaxCancellationReasonLength runes.
func NormalizeCancellationReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return DefaultCancellationReason
	}
	if utf8.RuneCountInString(reason) <= MaxCancellationReasonLength {
		return reason
	}
	runes := []rune(reason)
	return string(runes[:MaxCancellationReasonLength])
}

type BookingFilter struct {
	UserID  uuid.UUID
	EventID uuid.UUID
	Status  BookingStatus
	Page    int
	Limit   int
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageBounds clamps page and limit to usable values and returns the offset.
func PageBounds(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit, (page - 1) * limit
}
