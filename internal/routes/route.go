package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventease/internal/container"
	"github.com/joshua-takyi/eventease/internal/handlers"
	"github.com/joshua-takyi/eventease/internal/middleware"
	"github.com/joshua-takyi/eventease/internal/models"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container) *gin.Engine {
	secureCookies := false
	origins := []string{"http://localhost:3000"}
	if cfg := container.Config; cfg != nil {
		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}
		secureCookies = cfg.IsProduction()
		if len(cfg.CORSOrigins) > 0 {
			origins = cfg.CORSOrigins
		}
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.ErrorHandler(container.Logger))
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", handlers.Health())
		v1.POST("/login", handlers.Login(container.UserService, secureCookies))
		v1.POST("/logout", handlers.Logout(secureCookies))

		events := v1.Group("/events")
		events.GET("", handlers.ListEvents(container.EventService))
		events.GET("/upcoming", handlers.UpcomingEvents(container.EventService))
		events.GET("/categories", handlers.EventCategories(container.EventService))
		events.GET("/:id", handlers.GetEvent(container.EventService))
	}

	auth := middleware.AuthMiddleware(container.Tokens, container.UserService, secureCookies, container.Logger)

	bookings := v1.Group("/bookings", auth)
	{
		bookings.POST("", middleware.BookingAudit(container.Logger), handlers.CreateBooking(container.BookingService))
		bookings.GET("", handlers.ListMyBookings(container.BookingService))
		bookings.GET("/:id", handlers.GetBooking(container.BookingService))
		bookings.PUT("/:id/cancel", handlers.CancelBooking(container.BookingService))
	}

	admin := v1.Group("/admin", auth, middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/events", handlers.CreateEvent(container.EventService))
		admin.PUT("/events/:id", handlers.UpdateEvent(container.EventService))
		admin.DELETE("/events/:id", handlers.DeleteEvent(container.EventService))
		admin.GET("/events/:id/attendees", handlers.EventAttendees(container.BookingService))
		admin.GET("/bookings", handlers.ListAllBookings(container.BookingService))
	}

	return r
}
