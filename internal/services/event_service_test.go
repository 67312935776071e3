package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventease/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventFixture() (*models.MemoryRepo, *EventService, *BookingService) {
	repo := models.NewMemoryRepo()
	locker := NewLocalLocker()
	events := NewEventService(repo, locker, testLogger()).WithClock(fixedClock)
	bookings := NewBookingService(repo, repo, locker, testLogger()).WithClock(fixedClock)
	return repo, events, bookings
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newEventFixture()
	organizer := admin()

	view, err := svc.Create(ctx, organizer, &models.Event{
		ID:           uuid.New(),
		Title:        "  Jazz Night ",
		Description:  "Live band",
		Category:     models.CategoryMusic,
		Location:     "Osu",
		LocationType: models.LocationInPerson,
		Date:         testNow.Add(72 * time.Hour),
		Time:         "20:00",
		Duration:     180,
		Capacity:     40,
		BookedSeats:  12,
		Price:        15,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jazz Night", view.Title)
	assert.Equal(t, organizer.UserID, view.OrganizerID)
	assert.Zero(t, view.BookedSeats)
	assert.Equal(t, 40, view.AvailableSeats)
	assert.Equal(t, models.EventUpcoming, view.Status)
	assert.NotEmpty(t, view.Code)
	assert.Equal(t, models.DefaultEventImage, view.Image)

	_, err = svc.Create(ctx, organizer, &models.Event{Title: "incomplete"})
	assert.ErrorIs(t, err, models.ErrInvalidEvent)
}

func TestUpdateEventCapacityFloor(t *testing.T) {
	ctx := context.Background()
	repo, svc, bookings := newEventFixture()
	event := seedEvent(t, repo, testNow.Add(time.Hour), 4, 10)

	_, err := bookings.Create(ctx, user(), event.ID, 2)
	require.NoError(t, err)
	_, err = bookings.Create(ctx, user(), event.ID, 1)
	require.NoError(t, err)

	tooSmall := 2
	_, err = svc.Update(ctx, event.ID, models.EventPatch{Capacity: &tooSmall})
	assert.ErrorIs(t, err, models.ErrInvalidEvent)

	exact := 3
	view, err := svc.Update(ctx, event.ID, models.EventPatch{Capacity: &exact})
	require.NoError(t, err)
	assert.Equal(t, 0, view.AvailableSeats)
	assert.Equal(t, 3, view.BookedSeats)

	_, err = svc.Update(ctx, uuid.New(), models.EventPatch{Capacity: &exact})
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

func TestDeleteEvent(t *testing.T) {
	ctx := context.Background()
	repo, svc, bookings := newEventFixture()
	booked := seedEvent(t, repo, testNow.Add(time.Hour), 4, 10)
	empty := seedEvent(t, repo, testNow.Add(time.Hour), 4, 10)

	b, err := bookings.Create(ctx, user(), booked.ID, 1)
	require.NoError(t, err)
	_, err = bookings.Cancel(ctx, admin(), b.ID, "")
	require.NoError(t, err)

	// Cancelled bookings still count as history.
	assert.ErrorIs(t, svc.Delete(ctx, booked.ID), models.ErrHasDependents)

	require.NoError(t, svc.Delete(ctx, empty.ID))
	_, err = svc.Get(ctx, empty.ID)
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

func TestUpcomingEvents(t *testing.T) {
	ctx := context.Background()
	repo, svc, _ := newEventFixture()
	seedEvent(t, repo, testNow.Add(-time.Hour), 10, 10)
	for i := 8; i >= 1; i-- {
		seedEvent(t, repo, testNow.Add(time.Duration(i)*time.Hour), 10, 10)
	}

	upcoming, err := svc.Upcoming(ctx)
	require.NoError(t, err)
	require.Len(t, upcoming, UpcomingEventsLimit)
	assert.Equal(t, testNow.Add(time.Hour), upcoming[0].Date)
	for _, e := range upcoming {
		assert.Equal(t, models.EventUpcoming, e.Status)
	}
}

func TestListEventsUsesServiceClock(t *testing.T) {
	ctx := context.Background()
	repo, svc, _ := newEventFixture()
	seedEvent(t, repo, testNow.Add(-30*time.Minute), 10, 10)
	seedEvent(t, repo, testNow.Add(time.Hour), 10, 10)

	ongoing, total, err := svc.List(ctx, models.EventFilter{Status: models.EventOngoing})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.EventOngoing, ongoing[0].Status)

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Category{models.CategoryBusiness}, categories)
}
