package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventease/internal/container"
	"github.com/joshua-takyi/eventease/internal/helpers"
	"github.com/joshua-takyi/eventease/internal/models"
	"github.com/joshua-takyi/eventease/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "routes-secret"

type apiEnv struct {
	t      *testing.T
	router *gin.Engine
	repo   *models.MemoryRepo
}

func newAPI(t *testing.T) *apiEnv {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := models.NewMemoryRepo()
	c := container.NewContainer(logger, nil,
		container.Stores{Events: repo, Bookings: repo},
		services.NewLocalLocker(),
		helpers.NewHMACValidator(secret),
		nil,
	)
	return &apiEnv{t: t, router: SetupRoutes(c), repo: repo}
}

func (a *apiEnv) token(role string) (string, uuid.UUID) {
	id := uuid.New()
	tok, err := helpers.IssueToken(secret, helpers.Principal{UserID: id, Role: role}, time.Minute)
	require.NoError(a.t, err)
	return tok, id
}

func (a *apiEnv) do(method, path, token string, body any) (*httptest.ResponseRecorder, models.ApiResponse) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var res models.ApiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	return w, res
}

func (a *apiEnv) seedEvent(date time.Time, capacity int, price float64) *models.Event {
	e := &models.Event{
		Title:        "Hack Night",
		Description:  "Build things",
		Category:     models.CategoryTech,
		Location:     "Online",
		LocationType: models.LocationOnline,
		Date:         date,
		Time:         "17:00",
		Duration:     60,
		Capacity:     capacity,
		Price:        price,
	}
	e.BeforeCreate(time.Now().UTC())
	require.NoError(a.t, a.repo.CreateEvent(context.Background(), e))
	return e
}

func dataMap(t *testing.T, res models.ApiResponse) map[string]any {
	t.Helper()
	m, ok := res.Data.(map[string]any)
	require.True(t, ok, "data is %T", res.Data)
	return m
}

func TestHealth(t *testing.T) {
	api := newAPI(t)
	w, _ := api.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	api := newAPI(t)
	event := api.seedEvent(time.Now().Add(48*time.Hour), 5, 50)
	userTok, userID := api.token(models.RoleUser)

	w, res := api.do(http.MethodPost, "/api/v1/bookings", userTok, gin.H{
		"eventId":       event.ID.String(),
		"numberOfSeats": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := dataMap(t, res)
	assert.Equal(t, 100.0, booking["totalAmount"])
	assert.Equal(t, "Confirmed", booking["status"])
	assert.Equal(t, userID.String(), booking["userId"])
	bookingID := booking["id"].(string)

	w, res = api.do(http.MethodPost, "/api/v1/bookings", userTok, gin.H{
		"eventId":       event.ID.String(),
		"numberOfSeats": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrDuplicateBooking.Error(), res.Error)

	w, res = api.do(http.MethodGet, "/api/v1/bookings", userTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, res.Total)
	require.NotNil(t, res.Pagination)
	assert.Equal(t, 1, res.Pagination.Current)

	w, res = api.do(http.MethodGet, "/api/v1/events/"+event.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), dataMap(t, res)["availableSeats"])

	otherTok, _ := api.token(models.RoleUser)
	w, _ = api.do(http.MethodPut, "/api/v1/bookings/"+bookingID+"/cancel", otherTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, res = api.do(http.MethodPut, "/api/v1/bookings/"+bookingID+"/cancel", userTok, gin.H{
		"cancellationReason": "conflict",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Cancelled", dataMap(t, res)["status"])
	assert.Equal(t, "conflict", dataMap(t, res)["cancellationReason"])

	w, res = api.do(http.MethodPut, "/api/v1/bookings/"+bookingID+"/cancel", userTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrAlreadyCancelled.Error(), res.Error)

	w, res = api.do(http.MethodGet, "/api/v1/events/"+event.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), dataMap(t, res)["availableSeats"])
}

func TestCreateBookingErrors(t *testing.T) {
	api := newAPI(t)
	past := api.seedEvent(time.Now().Add(-time.Hour), 5, 50)
	future := api.seedEvent(time.Now().Add(time.Hour), 5, 50)
	tok, _ := api.token(models.RoleUser)

	cases := []struct {
		name   string
		body   any
		status int
		err    string
	}{
		{"too many seats", gin.H{"eventId": future.ID.String(), "numberOfSeats": 3}, http.StatusBadRequest, models.ErrInvalidSeatCount.Error()},
		{"missing seats", gin.H{"eventId": future.ID.String()}, http.StatusBadRequest, models.ErrInvalidSeatCount.Error()},
		{"unknown event", gin.H{"eventId": uuid.NewString(), "numberOfSeats": 1}, http.StatusNotFound, models.ErrEventNotFound.Error()},
		{"past event", gin.H{"eventId": past.ID.String(), "numberOfSeats": 1}, http.StatusBadRequest, models.ErrEventNotBookable.Error()},
		{"bad id", gin.H{"eventId": "abc", "numberOfSeats": 1}, http.StatusBadRequest, "invalid eventId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, res := api.do(http.MethodPost, "/api/v1/bookings", tok, tc.body)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.err, res.Error)
		})
	}

	w, _ := api.do(http.MethodPost, "/api/v1/bookings", "", gin.H{"eventId": future.ID.String(), "numberOfSeats": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminEventManagement(t *testing.T) {
	api := newAPI(t)
	adminTok, _ := api.token(models.RoleAdmin)
	userTok, _ := api.token(models.RoleUser)

	payload := gin.H{
		"title":        "Food Fair",
		"description":  "Street food",
		"category":     "Food",
		"location":     "Labadi",
		"locationType": "In-Person",
		"date":         time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"time":         "12:00",
		"duration":     240,
		"capacity":     2,
		"price":        5,
	}

	w, _ := api.do(http.MethodPost, "/api/v1/admin/events", userTok, payload)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, res := api.do(http.MethodPost, "/api/v1/admin/events", adminTok, payload)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	eventID := dataMap(t, res)["id"].(string)

	w, _ = api.do(http.MethodPost, "/api/v1/bookings", userTok, gin.H{"eventId": eventID, "numberOfSeats": 2})
	require.Equal(t, http.StatusCreated, w.Code)

	w, res = api.do(http.MethodGet, "/api/v1/admin/events/"+eventID+"/attendees", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, res.Total)

	w, res = api.do(http.MethodPut, "/api/v1/admin/events/"+eventID, adminTok, gin.H{"capacity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, res.Error, models.ErrInvalidEvent.Error())

	w, res = api.do(http.MethodPut, "/api/v1/admin/events/"+eventID, adminTok, gin.H{"price": 9.5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 9.5, dataMap(t, res)["price"])

	w, res = api.do(http.MethodDelete, "/api/v1/admin/events/"+eventID, adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrHasDependents.Error(), res.Error)

	w, res = api.do(http.MethodGet, "/api/v1/admin/bookings?eventId="+eventID, adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, res.Total)

	w, _ = api.do(http.MethodDelete, "/api/v1/admin/events/"+uuid.NewString(), adminTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventListing(t *testing.T) {
	api := newAPI(t)
	api.seedEvent(time.Now().Add(-48*time.Hour), 5, 0)
	for i := 1; i <= 7; i++ {
		api.seedEvent(time.Now().Add(time.Duration(i)*time.Hour), 5, 0)
	}

	w, res := api.do(http.MethodGet, "/api/v1/events?status=Upcoming&limit=5&page=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, res.Total)
	assert.Equal(t, 2, res.Count)
	assert.False(t, res.Pagination.HasNext)
	assert.True(t, res.Pagination.HasPrev)

	w, res = api.do(http.MethodGet, "/api/v1/events/upcoming", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.UpcomingEventsLimit, res.Count)

	w, res = api.do(http.MethodGet, "/api/v1/events/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"Tech"}, res.Data)

	for _, query := range []string{"status=Later", "page=0", "limit=x", "startDate=yesterday"} {
		w, _ = api.do(http.MethodGet, "/api/v1/events?"+query, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}

	w, _ = api.do(http.MethodGet, "/api/v1/events/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginWithoutIdentityBackend(t *testing.T) {
	api := newAPI(t)
	w, _ := api.do(http.MethodPost, "/api/v1/login", "", gin.H{"email": "a@b.co", "password": "secret1"})
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w, _ = api.do(http.MethodPost, "/api/v1/logout", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func (a *apiEnv) cancelStreamed(path, token, body string) (*httptest.ResponseRecorder, models.ApiResponse) {
	req := httptest.NewRequest(http.MethodPut, path, io.NopCloser(strings.NewReader(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	require.Equal(a.t, int64(-1), req.ContentLength)

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var res models.ApiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	return w, res
}

func TestCancelBookingReadsBodyWithoutContentLength(t *testing.T) {
	api := newAPI(t)
	tok, _ := api.token(models.RoleUser)

	book := func() string {
		event := api.seedEvent(time.Now().Add(24*time.Hour), 5, 10)
		w, res := api.do(http.MethodPost, "/api/v1/bookings", tok, gin.H{
			"eventId":       event.ID.String(),
			"numberOfSeats": 1,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		return dataMap(t, res)["id"].(string)
	}

	w, res := api.cancelStreamed("/api/v1/bookings/"+book()+"/cancel", tok, `{"cancellationReason":"flight moved"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "flight moved", dataMap(t, res)["cancellationReason"])

	w, res = api.cancelStreamed("/api/v1/bookings/"+book()+"/cancel", tok, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.DefaultCancellationReason, dataMap(t, res)["cancellationReason"])

	w, _ = api.cancelStreamed("/api/v1/bookings/"+book()+"/cancel", tok, `{"cancellationReason":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
