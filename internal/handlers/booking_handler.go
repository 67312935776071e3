package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventease/internal/middleware"
	"github.com/joshua-takyi/eventease/internal/models"
	"github.com/joshua-takyi/eventease/internal/services"
)

type createBookingRequest struct {
	EventID       string `json:"eventId" binding:"required"`
	NumberOfSeats int    `json:"numberOfSeats"`
}

type cancelBookingRequest struct {
	CancellationReason string `json:"cancellationReason"`
}

func CreateBooking(bs *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}

		var req createBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("eventId and numberOfSeats are required"))
			return
		}
		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid eventId"))
			return
		}

		booking, err := bs.Create(c.Request.Context(), p, eventID, req.NumberOfSeats)
		if err != nil {
			respondError(c, err)
			return
		}

		c.Set(middleware.AuditBookingKey, booking)
		c.JSON(http.StatusCreated, models.SuccessResponse(booking, "Booking created successfully"))
	}
}

func ListMyBookings(bs *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		status, ok := bookingStatusParam(c)
		if !ok {
			return
		}
		page, limit, ok := pageParams(c)
		if !ok {
			return
		}

		bookings, total, err := bs.ListForUser(c.Request.Context(), p, status, page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(bookings, len(bookings), page, limit, total))
	}
}

func GetBooking(bs *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}

		booking, err := bs.Get(c.Request.Context(), p, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(booking, ""))
	}
}

func CancelBooking(bs *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}

		// The body is optional.
		var req cancelBookingRequest
		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
				c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid request body"))
				return
			}
		}

		booking, err := bs.Cancel(c.Request.Context(), p, id, req.CancellationReason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(booking, "Booking cancelled successfully"))
	}
}

func ListAllBookings(bs *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, ok := bookingStatusParam(c)
		if !ok {
			return
		}
		page, limit, ok := pageParams(c)
		if !ok {
			return
		}
		filter := models.BookingFilter{Status: status, Page: page, Limit: limit}
		if raw := c.Query("eventId"); raw != "" {
			eventID, err := uuid.Parse(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid eventId parameter"))
				return
			}
			filter.EventID = eventID
		}

		bookings, total, err := bs.ListAll(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(bookings, len(bookings), page, limit, total))
	}
}

func EventAttendees(bs *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}
		page, limit, ok := pageParams(c)
		if !ok {
			return
		}

		attendees, total, err := bs.Attendees(c.Request.Context(), id, page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(attendees, len(attendees), page, limit, total))
	}
}
