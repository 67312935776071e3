package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventease/internal/helpers"
	"github.com/joshua-takyi/eventease/internal/models"
)

const UpcomingEventsLimit = 6

type EventService struct {
	events models.EventStore
	locker EventLocker
	now    func() time.Time
	logger *slog.Logger
}

func NewEventService(events models.EventStore, locker EventLocker, logger *slog.Logger) *EventService {
	return &EventService{
		events: events,
		locker: locker,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

func (es *EventService) WithClock(now func() time.Time) *EventService {
	es.now = now
	return es
}

func (es *EventService) Create(ctx context.Context, p *helpers.Principal, event *models.Event) (*models.EventView, error) {
	event.Title = strings.TrimSpace(event.Title)
	event.Location = strings.TrimSpace(event.Location)
	event.OrganizerID = p.UserID
	event.ID = uuid.Nil
	event.Code = ""
	event.BeforeCreate(es.now())

	if err := event.ValidateEvent(); err != nil {
		return nil, err
	}
	if err := es.events.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	es.logger.Info("event created", "event_id", event.ID, "code", event.Code, "organizer_id", p.UserID)
	return event.View(es.now()), nil
}

// Update applies a partial patch. Booked seats are never taken from the
// patch and capacity may not drop below them.
func (es *EventService) Update(ctx context.Context, id uuid.UUID, patch models.EventPatch) (*models.EventView, error) {
	unlock, err := es.locker.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}
	defer unlock()

	event, err := es.events.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(event)
	event.UpdatedAt = es.now()
	if err := event.ValidateEvent(); err != nil {
		return nil, err
	}
	if err := es.events.UpdateEvent(ctx, event); err != nil {
		return nil, err
	}

	es.logger.Info("event updated", "event_id", id)
	return event.View(es.now()), nil
}

// Delete removes an event that has never been booked.
func (es *EventService) Delete(ctx context.Context, id uuid.UUID) error {
	unlock, err := es.locker.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to lock event: %w", err)
	}
	defer unlock()

	if err := es.events.DeleteEvent(ctx, id); err != nil {
		return err
	}
	es.logger.Info("event deleted", "event_id", id)
	return nil
}

func (es *EventService) Get(ctx context.Context, id uuid.UUID) (*models.EventView, error) {
	event, err := es.events.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return event.View(es.now()), nil
}

func (es *EventService) List(ctx context.Context, filter models.EventFilter) ([]*models.EventView, int, error) {
	filter.Now = es.now()
	events, total, err := es.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return es.views(events), total, nil
}

// Upcoming returns the next events that can still be booked, soonest first.
func (es *EventService) Upcoming(ctx context.Context) ([]*models.EventView, error) {
	events, _, err := es.events.ListEvents(ctx, models.EventFilter{
		Status: models.EventUpcoming,
		Now:    es.now(),
		Page:   1,
		Limit:  UpcomingEventsLimit,
	})
	if err != nil {
		return nil, err
	}
	return es.views(events), nil
}

func (es *EventService) Categories(ctx context.Context) ([]models.Category, error) {
	return es.events.Categories(ctx)
}

func (es *EventService) views(events []*models.Event) []*models.EventView {
	now := es.now()
	views := make([]*models.EventView, 0, len(events))
	for _, e := range events {
		views = append(views, e.View(now))
	}
	return views
}
