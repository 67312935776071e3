package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventease/internal/helpers"
	"github.com/joshua-takyi/eventease/internal/models"
)

// BookingDetails is a booking with its event populated for display.
type BookingDetails struct {
	*models.Booking
	Event *models.EventView `json:"event,omitempty"`
}

// BookingService is the only writer of booking status and booked seats.
type BookingService struct {
	events   models.EventStore
	bookings models.BookingStore
	locker   EventLocker
	now      func() time.Time
	logger   *slog.Logger
}

func NewBookingService(events models.EventStore, bookings models.BookingStore, locker EventLocker, logger *slog.Logger) *BookingService {
	return &BookingService{
		events:   events,
		bookings: bookings,
		locker:   locker,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// WithClock replaces the time source.
func (bs *BookingService) WithClock(now func() time.Time) *BookingService {
	bs.now = now
	return bs
}

// Create books seats for the principal. The first failing check wins:
// seat count, event existence, event in the future, no prior booking,
// capacity. The reservation is undone if the booking cannot be stored.
func (bs *BookingService) Create(ctx context.Context, p *helpers.Principal, eventID uuid.UUID, seats int) (*models.Booking, error) {
	if !models.ValidSeatCount(seats) {
		return nil, models.ErrInvalidSeatCount
	}

	event, err := bs.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsBookable(bs.now()) {
		return nil, models.ErrEventNotBookable
	}

	unlock, err := bs.locker.Lock(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}
	defer unlock()

	existing, err := bs.bookings.FindByUserAndEvent(ctx, p.UserID, eventID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrDuplicateBooking
	}

	if _, err := bs.events.AdjustBookedSeats(ctx, eventID, seats); err != nil {
		if errors.Is(err, models.ErrCapacityExceeded) {
			return nil, models.ErrInsufficientSeats
		}
		return nil, err
	}

	// Price comes from the read above, not from the adjusted event.
	booking := &models.Booking{
		ID:            uuid.New(),
		UserID:        p.UserID,
		EventID:       eventID,
		NumberOfSeats: seats,
		TotalAmount:   event.Price * float64(seats),
		Status:        models.BookingConfirmed,
		BookingDate:   bs.now(),
	}

	if err := bs.bookings.CreateBooking(ctx, booking); err != nil {
		bs.releaseSeats(eventID, booking.ID, seats)
		return nil, err
	}

	bs.logger.Info("booking created",
		"booking_id", booking.ID,
		"event_id", eventID,
		"user_id", p.UserID,
		"seats", seats,
	)
	return booking, nil
}

// releaseSeats undoes a reservation whose booking write failed. It runs on a
// fresh context so a cancelled request still gets its seats back.
func (bs *BookingService) releaseSeats(eventID, bookingID uuid.UUID, seats int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := bs.events.AdjustBookedSeats(ctx, eventID, -seats); err != nil {
		bs.logger.Error("failed to release reserved seats",
			"booking_id", bookingID,
			"event_id", eventID,
			"seats", seats,
			"error", err,
		)
	}
}

// Cancel moves a confirmed booking to Cancelled and returns its seats. Seats
// are released first; if the booking cannot be marked they are reserved again.
func (bs *BookingService) Cancel(ctx context.Context, p *helpers.Principal, bookingID uuid.UUID, reason string) (*models.Booking, error) {
	booking, err := bs.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !p.IsOwner(booking.UserID) && !p.IsAdmin() {
		return nil, models.ErrNotAuthorized
	}
	if !booking.IsConfirmed() {
		return nil, models.ErrAlreadyCancelled
	}

	event, err := bs.events.GetEvent(ctx, booking.EventID)
	if err != nil {
		return nil, err
	}
	if !event.IsBookable(bs.now()) {
		return nil, models.ErrEventNotCancellable
	}

	unlock, err := bs.locker.Lock(ctx, booking.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}
	defer unlock()

	// Re-read under the lock; a concurrent cancel may have won.
	booking, err = bs.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsConfirmed() {
		return nil, models.ErrAlreadyCancelled
	}

	if _, err := bs.events.AdjustBookedSeats(ctx, booking.EventID, -booking.NumberOfSeats); err != nil {
		if errors.Is(err, models.ErrCapacityExceeded) {
			return nil, fmt.Errorf("booked seats of event %s are below booking %s: %w", booking.EventID, booking.ID, err)
		}
		return nil, err
	}

	cancelled, err := bs.bookings.MarkCancelled(ctx, bookingID, models.NormalizeCancellationReason(reason), bs.now())
	if err != nil {
		bs.restoreSeats(booking)
		return nil, err
	}

	bs.logger.Info("booking cancelled",
		"booking_id", bookingID,
		"event_id", booking.EventID,
		"cancelled_by", p.UserID,
		"seats", booking.NumberOfSeats,
	)
	return cancelled, nil
}

func (bs *BookingService) restoreSeats(booking *models.Booking) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := bs.events.AdjustBookedSeats(ctx, booking.EventID, booking.NumberOfSeats); err != nil {
		bs.logger.Error("failed to restore seats after cancellation failure",
			"booking_id", booking.ID,
			"event_id", booking.EventID,
			"seats", booking.NumberOfSeats,
			"error", err,
		)
	}
}

// Get returns a booking visible to its owner or an admin.
func (bs *BookingService) Get(ctx context.Context, p *helpers.Principal, bookingID uuid.UUID) (*BookingDetails, error) {
	booking, err := bs.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !p.IsOwner(booking.UserID) && !p.IsAdmin() {
		return nil, models.ErrNotAuthorized
	}
	return bs.withEvent(ctx, booking)
}

func (bs *BookingService) withEvent(ctx context.Context, booking *models.Booking) (*BookingDetails, error) {
	event, err := bs.events.GetEvent(ctx, booking.EventID)
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			return &BookingDetails{Booking: booking}, nil
		}
		return nil, err
	}
	return &BookingDetails{Booking: booking, Event: event.View(bs.now())}, nil
}

func (bs *BookingService) populate(ctx context.Context, bookings []*models.Booking) ([]*BookingDetails, error) {
	cache := make(map[uuid.UUID]*models.EventView)
	details := make([]*BookingDetails, 0, len(bookings))
	for _, b := range bookings {
		view, ok := cache[b.EventID]
		if !ok {
			event, err := bs.events.GetEvent(ctx, b.EventID)
			switch {
			case err == nil:
				view = event.View(bs.now())
			case !errors.Is(err, models.ErrEventNotFound):
				return nil, err
			}
			cache[b.EventID] = view
		}
		details = append(details, &BookingDetails{Booking: b, Event: view})
	}
	return details, nil
}

// ListForUser returns the principal's own bookings, newest first.
func (bs *BookingService) ListForUser(ctx context.Context, p *helpers.Principal, status models.BookingStatus, page, limit int) ([]*BookingDetails, int, error) {
	return bs.list(ctx, models.BookingFilter{UserID: p.UserID, Status: status, Page: page, Limit: limit})
}

func (bs *BookingService) ListAll(ctx context.Context, filter models.BookingFilter) ([]*BookingDetails, int, error) {
	return bs.list(ctx, filter)
}

func (bs *BookingService) list(ctx context.Context, filter models.BookingFilter) ([]*BookingDetails, int, error) {
	bookings, total, err := bs.bookings.ListBookings(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	details, err := bs.populate(ctx, bookings)
	if err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

// Attendees lists the confirmed bookings of one event.
func (bs *BookingService) Attendees(ctx context.Context, eventID uuid.UUID, page, limit int) ([]*models.Booking, int, error) {
	if _, err := bs.events.GetEvent(ctx, eventID); err != nil {
		return nil, 0, err
	}
	return bs.bookings.ListBookings(ctx, models.BookingFilter{
		EventID: eventID,
		Status:  models.BookingConfirmed,
		Page:    page,
		Limit:   limit,
	})
}
