package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventease/internal/helpers"
	"github.com/joshua-takyi/eventease/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() time.Time { return testNow }

func user() *helpers.Principal {
	return &helpers.Principal{UserID: uuid.New(), Role: models.RoleUser}
}

func admin() *helpers.Principal {
	return &helpers.Principal{UserID: uuid.New(), Role: models.RoleAdmin}
}

func seedEvent(t *testing.T, store models.EventStore, date time.Time, capacity int, price float64) *models.Event {
	t.Helper()
	e := &models.Event{
		Title:        "Launch Party",
		Description:  "Product launch",
		Category:     models.CategoryBusiness,
		Location:     "Kumasi",
		LocationType: models.LocationHybrid,
		Date:         date,
		Time:         "19:30",
		Duration:     90,
		Capacity:     capacity,
		Price:        price,
		OrganizerID:  uuid.New(),
	}
	e.BeforeCreate(testNow)
	require.NoError(t, store.CreateEvent(context.Background(), e))
	return e
}

func bookedSeats(t *testing.T, store models.EventStore, id uuid.UUID) int {
	t.Helper()
	e, err := store.GetEvent(context.Background(), id)
	require.NoError(t, err)
	return e.BookedSeats
}

// flakyBookingStore fails selected writes while delegating everything else
// to an in-memory store.
type flakyBookingStore struct {
	*models.MemoryRepo
	mock.Mock
}

func (f *flakyBookingStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	args := f.Called(ctx, b)
	return args.Error(0)
}

func (f *flakyBookingStore) MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*models.Booking, error) {
	args := f.Called(ctx, id, reason, at)
	if b, ok := args.Get(0).(*models.Booking); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}
