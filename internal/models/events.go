package models

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryMusic     Category = "Music"
	CategoryTech      Category = "Tech"
	CategoryBusiness  Category = "Business"
	CategoryEducation Category = "Education"
	CategorySports    Category = "Sports"
	CategoryArts      Category = "Arts"
	CategoryFood      Category = "Food"
	CategoryOther     Category = "Other"
)

type LocationType string

const (
	LocationOnline   LocationType = "Online"
	LocationInPerson LocationType = "In-Person"
	LocationHybrid   LocationType = "Hybrid"
)

type EventStatus string

const (
	EventUpcoming  EventStatus = "Upcoming"
	EventOngoing   EventStatus = "Ongoing"
	EventCompleted EventStatus = "Completed"
)

const (
	EventsDbName        = "eventease"
	EventsColName       = "events"
	DefaultEventImage   = "default-event.jpg"
	EventDateDisplayFmt = "02-Jan-2006"
)

type Event struct {
	ID           uuid.UUID    `bson:"_id" json:"id"`
	Code         string       `bson:"code" json:"code"`
	Title        string       `bson:"title" json:"title" validate:"required,max=100"`
	Description  string       `bson:"description" json:"description" validate:"required,max=1000"`
	Category     Category     `bson:"category" json:"category" validate:"required,oneof=Music Tech Business Education Sports Arts Food Other"`
	Location     string       `bson:"location" json:"location" validate:"required"`
	LocationType LocationType `bson:"location_type" json:"locationType" validate:"required,oneof=Online In-Person Hybrid"`
	Date         time.Time    `bson:"date" json:"date" validate:"required"`
	Time         string       `bson:"time" json:"time" validate:"required"`
	Duration     int          `bson:"duration" json:"duration" validate:"gt=0"`
	Capacity     int          `bson:"capacity" json:"capacity" validate:"gte=1"`
	BookedSeats  int          `bson:"booked_seats" json:"bookedSeats" validate:"gte=0,ltefield=Capacity"`
	Price        float64      `bson:"price" json:"price" validate:"gte=0"`
	Image        string       `bson:"image" json:"image"`
	OrganizerID  uuid.UUID    `bson:"organizer_id" json:"organizerId"`
	CreatedAt    time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `bson:"updated_at" json:"updatedAt"`
}

// EventView is the read shape of an Event with its derived fields filled in.
type EventView struct {
	*Event
	AvailableSeats int         `json:"availableSeats"`
	Status         EventStatus `json:"status"`
	FormattedDate  string      `json:"formattedDate"`
}

func (e *Event) AvailableSeats() int {
	return e.Capacity - e.BookedSeats
}

// EndsAt is the scheduled start plus the duration in minutes.
func (e *Event) EndsAt() time.Time {
	return e.Date.Add(time.Duration(e.Duration) * time.Minute)
}

func (e *Event) Status(now time.Time) EventStatus {
	switch {
	case now.Before(e.Date):
		return EventUpcoming
	case now.Before(e.EndsAt()):
		return EventOngoing
	default:
		return EventCompleted
	}
}

// IsBookable reports whether the event is strictly in the future.
func (e *Event) IsBookable(now time.Time) bool {
	return e.Date.After(now)
}

func (e *Event) View(now time.Time) *EventView {
	return &EventView{
		Event:          e,
		AvailableSeats: e.AvailableSeats(),
		Status:         e.Status(now),
		FormattedDate:  e.Date.Format(EventDateDisplayFmt),
	}
}

func (e *Event) BeforeCreate(now time.Time) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Code == "" {
		e.Code = NewEventCode(e.Date)
	}
	if strings.TrimSpace(e.Image) == "" {
		e.Image = DefaultEventImage
	}
	e.BookedSeats = 0
	e.CreatedAt = now
	e.UpdatedAt = now
}

func (e *Event) ValidateEvent() error {
	if err := Validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}

const eventCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewEventCode builds a display code such as EVT-OCT2026-K3Q.
func NewEventCode(date time.Time) string {
	suffix := make([]byte, 3)
	for i := range suffix {
		suffix[i] = eventCodeAlphabet[rand.Intn(len(eventCodeAlphabet))]
	}
	return fmt.Sprintf("EVT-%s%d-%s", strings.ToUpper(date.Format("Jan")), date.Year(), suffix)
}

// EventFilter narrows ListEvents. Status is evaluated against Now.
type EventFilter struct {
	Category     Category
	LocationType LocationType
	Status       EventStatus
	Search       string
	From         *time.Time
	To           *time.Time
	Now          time.Time
	Page         int
	Limit        int
}

// EventPatch carries the admin-editable fields; nil means unchanged.
type EventPatch struct {
	Title        *string       `json:"title"`
	Description  *string       `json:"description"`
	Category     *Category     `json:"category"`
	Location     *string       `json:"location"`
	LocationType *LocationType `json:"locationType"`
	Date         *time.Time    `json:"date"`
	Time         *string       `json:"time"`
	Duration     *int          `json:"duration"`
	Capacity     *int          `json:"capacity"`
	Price        *float64      `json:"price"`
	Image        *string       `json:"image"`
}

func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Location != nil {
		e.Location = strings.TrimSpace(*p.Location)
	}
	if p.LocationType != nil {
		e.LocationType = *p.LocationType
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Time != nil {
		e.Time = *p.Time
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
	}
	if p.Capacity != nil {
		e.Capacity = *p.Capacity
	}
	if p.Price != nil {
		e.Price = *p.Price
	}
	if p.Image != nil {
		e.Image = *p.Image
	}
}
