package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventease/internal/helpers"
	"github.com/joshua-takyi/eventease/internal/middleware"
	"github.com/joshua-takyi/eventease/internal/models"
)

var badRequestErrors = []error{
	models.ErrInvalidSeatCount,
	models.ErrEventNotBookable,
	models.ErrEventNotCancellable,
	models.ErrDuplicateBooking,
	models.ErrInsufficientSeats,
	models.ErrAlreadyCancelled,
	models.ErrHasDependents,
	models.ErrInvalidEvent,
}

// StatusFor maps a domain error onto its HTTP status.
func StatusFor(err error) int {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, models.ErrEventNotFound), errors.Is(err, models.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, models.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the envelope for err. Internal failures are attached
// to the context for ErrorHandler and never echoed to the client.
func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	switch status {
	case http.StatusInternalServerError:
		_ = c.Error(err)
		c.JSON(status, models.ErrorResponse("internal server error"))
	case http.StatusServiceUnavailable:
		_ = c.Error(err)
		c.JSON(status, models.ErrorResponse(models.ErrStorageUnavailable.Error()))
	default:
		c.JSON(status, models.ErrorResponse(err.Error()))
	}
}

func principal(c *gin.Context) (*helpers.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse("unauthorized"))
		return nil, false
	}
	return p, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid "+name+" parameter"))
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads page and limit; absent values fall back to defaults.
func pageParams(c *gin.Context) (int, int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid page parameter"))
		return 0, 0, false
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(models.DefaultPageLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid limit parameter"))
		return 0, 0, false
	}
	_, limit, _ = models.PageBounds(page, limit)
	return page, limit, true
}

func bookingStatusParam(c *gin.Context) (models.BookingStatus, bool) {
	status := models.BookingStatus(c.Query("status"))
	switch status {
	case "", models.BookingConfirmed, models.BookingCancelled:
		return status, true
	}
	c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid status parameter"))
	return "", false
}
