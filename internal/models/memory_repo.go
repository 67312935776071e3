package models

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type userEventKey struct {
	userID  uuid.UUID
	eventID uuid.UUID
}

// MemoryRepo is an in-process EventStore and BookingStore. All records are
// copied in and out so callers never share state with the store.
type MemoryRepo struct {
	mu          sync.RWMutex
	events      map[uuid.UUID]*Event
	bookings    map[uuid.UUID]*Booking
	byUserEvent map[userEventKey]uuid.UUID
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		events:      make(map[uuid.UUID]*Event),
		bookings:    make(map[uuid.UUID]*Booking),
		byUserEvent: make(map[userEventKey]uuid.UUID),
	}
}

func copyEvent(e *Event) *Event {
	c := *e
	return &c
}

func copyBooking(b *Booking) *Booking {
	c := *b
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		c.CancelledAt = &at
	}
	return &c
}

func (m *MemoryRepo) CreateEvent(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = copyEvent(event)
	return nil
}

func (m *MemoryRepo) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return copyEvent(e), nil
}

func (m *MemoryRepo) UpdateEvent(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.events[event.ID]
	if !ok {
		return ErrEventNotFound
	}
	if event.Capacity < current.BookedSeats {
		return errCapacityBelowBooked
	}
	updated := copyEvent(event)
	updated.BookedSeats = current.BookedSeats
	updated.CreatedAt = current.CreatedAt
	updated.Code = current.Code
	m.events[event.ID] = updated
	return nil
}

func (m *MemoryRepo) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrEventNotFound
	}
	for _, b := range m.bookings {
		if b.EventID == id {
			return ErrHasDependents
		}
	}
	delete(m.events, id)
	return nil
}

func (m *MemoryRepo) AdjustBookedSeats(ctx context.Context, id uuid.UUID, delta int) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	next := e.BookedSeats + delta
	if next < 0 || next > e.Capacity {
		return nil, ErrCapacityExceeded
	}
	e.BookedSeats = next
	e.UpdatedAt = time.Now().UTC()
	return copyEvent(e), nil
}

func matchesEvent(e *Event, f EventFilter) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.LocationType != "" && e.LocationType != f.LocationType {
		return false
	}
	if f.From != nil && e.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Date.After(*f.To) {
		return false
	}
	if f.Status != "" && e.Status(f.Now) != f.Status {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		if !strings.Contains(strings.ToLower(e.Title), search) &&
			!strings.Contains(strings.ToLower(e.Description), search) &&
			!strings.Contains(strings.ToLower(e.Location), search) {
			return false
		}
	}
	return true
}

func (m *MemoryRepo) ListEvents(ctx context.Context, f EventFilter) ([]*Event, int, error) {
	m.mu.RLock()
	matched := make([]*Event, 0)
	for _, e := range m.events {
		if matchesEvent(e, f) {
			matched = append(matched, copyEvent(e))
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Date.Before(matched[j].Date)
	})

	_, limit, offset := PageBounds(f.Page, f.Limit)
	return pageOf(matched, offset, limit), len(matched), nil
}

func pageOf[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (m *MemoryRepo) Categories(ctx context.Context) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[Category]struct{})
	categories := make([]Category, 0)
	for _, e := range m.events {
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		categories = append(categories, e.Category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories, nil
}

func (m *MemoryRepo) CreateBooking(ctx context.Context, booking *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userEventKey{userID: booking.UserID, eventID: booking.EventID}
	if _, ok := m.byUserEvent[key]; ok {
		return ErrDuplicateBooking
	}
	m.bookings[booking.ID] = copyBooking(booking)
	m.byUserEvent[key] = booking.ID
	return nil
}

func (m *MemoryRepo) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (m *MemoryRepo) FindByUserAndEvent(ctx context.Context, userID, eventID uuid.UUID) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUserEvent[userEventKey{userID: userID, eventID: eventID}]
	if !ok {
		return nil, nil
	}
	return copyBooking(m.bookings[id]), nil
}

func (m *MemoryRepo) MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if b.Status != BookingConfirmed {
		return nil, ErrAlreadyCancelled
	}
	b.Status = BookingCancelled
	b.CancelledAt = &at
	b.CancellationReason = reason
	return copyBooking(b), nil
}

func (m *MemoryRepo) ListBookings(ctx context.Context, f BookingFilter) ([]*Booking, int, error) {
	m.mu.RLock()
	matched := make([]*Booking, 0)
	for _, b := range m.bookings {
		if f.UserID != uuid.Nil && b.UserID != f.UserID {
			continue
		}
		if f.EventID != uuid.Nil && b.EventID != f.EventID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		matched = append(matched, copyBooking(b))
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].BookingDate.After(matched[j].BookingDate)
	})

	_, limit, offset := PageBounds(f.Page, f.Limit)
	return pageOf(matched, offset, limit), len(matched), nil
}

func (m *MemoryRepo) CountByEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, b := range m.bookings {
		if b.EventID == eventID {
			n++
		}
	}
	return n, nil
}
