package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSeatCount    = errors.New("you can only book 1 or 2 seats per event")
	ErrEventNotFound       = errors.New("event not found")
	ErrEventNotBookable    = errors.New("cannot book for past or ongoing events")
	ErrEventNotCancellable = errors.New("cannot cancel booking for ongoing or completed events")
	ErrDuplicateBooking    = errors.New("you already have a booking for this event")
	ErrInsufficientSeats   = errors.New("not enough seats available for this event")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrNotAuthorized       = errors.New("not authorized to access this booking")
	ErrAlreadyCancelled    = errors.New("booking is already cancelled")
	ErrHasDependents       = errors.New("cannot delete event with existing bookings")
	ErrStorageUnavailable  = errors.New("storage temporarily unavailable")
)

var (
	// ErrCapacityExceeded is returned by AdjustBookedSeats when the result
	// would leave [0, capacity].
	ErrCapacityExceeded = errors.New("booked seats would leave capacity bounds")
	ErrInvalidEvent     = errors.New("invalid event")
)

var errCapacityBelowBooked = fmt.Errorf("%w: capacity cannot be lower than booked seats", ErrInvalidEvent)
