package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventease/internal/models"
	"github.com/joshua-takyi/eventease/internal/services"
)

var eventDateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseEventDate(raw string) (*time.Time, bool) {
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

func eventFilterParams(c *gin.Context) (models.EventFilter, bool) {
	page, limit, ok := pageParams(c)
	if !ok {
		return models.EventFilter{}, false
	}
	filter := models.EventFilter{
		Category:     models.Category(c.Query("category")),
		LocationType: models.LocationType(c.Query("locationType")),
		Status:       models.EventStatus(c.Query("status")),
		Search:       c.Query("search"),
		Page:         page,
		Limit:        limit,
	}

	switch filter.Status {
	case "", models.EventUpcoming, models.EventOngoing, models.EventCompleted:
	default:
		c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid status parameter"))
		return filter, false
	}

	for param, dst := range map[string]**time.Time{"startDate": &filter.From, "endDate": &filter.To} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		t, ok := parseEventDate(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid "+param+" parameter"))
			return filter, false
		}
		*dst = t
	}
	return filter, true
}

func ListEvents(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, ok := eventFilterParams(c)
		if !ok {
			return
		}
		events, total, err := es.List(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(events, len(events), filter.Page, filter.Limit, total))
	}
}

func UpcomingEvents(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := es.Upcoming(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		res := models.SuccessResponse(events, "")
		res.Count = len(events)
		c.JSON(http.StatusOK, res)
	}
}

func EventCategories(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := es.Categories(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(categories, ""))
	}
}

func GetEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}
		event, err := es.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(event, ""))
	}
}

func CreateEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		var event models.Event
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
			return
		}

		created, err := es.Create(c.Request.Context(), p, &event)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(created, "Event created successfully"))
	}
}

func UpdateEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}
		var patch models.EventPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
			return
		}

		updated, err := es.Update(c.Request.Context(), id, patch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(updated, "Event updated successfully"))
	}
}

func DeleteEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}
		if err := es.Delete(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Event deleted successfully"))
	}
}
