package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventease/internal/helpers"
	"github.com/joshua-takyi/eventease/internal/models"
	"github.com/joshua-takyi/eventease/internal/services"
)

const (
	PrincipalKey    = "user"
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
	// AuditBookingKey is set by the booking handler for BookingAudit.
	AuditBookingKey = "audit_booking"

	refreshCookieMaxAge = 3600 * 24 * 30
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		requestID, _ := c.Get("request_id")
		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if p, ok := CurrentPrincipal(c); ok {
			attrs = append(attrs, "user_id", p.UserID)
		}
		logger.Info("HTTP Request", attrs...)
	}
}

// ErrorHandler logs errors attached with c.Error and answers with a generic
// 500 when the handler did not write a response itself.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		requestID, _ := c.Get("request_id")

		logger.Error("Request error",
			"request_id", requestID,
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success":    false,
				"error":      "internal server error",
				"request_id": requestID,
			})
		}
	}
}

// BookingAudit writes one NEW_BOOKING record per successfully created booking.
func BookingAudit(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodPost || c.Writer.Status() != http.StatusCreated {
			return
		}
		v, ok := c.Get(AuditBookingKey)
		if !ok {
			return
		}
		booking, ok := v.(*models.Booking)
		if !ok {
			return
		}
		requestID, _ := c.Get("request_id")
		logger.Info("NEW_BOOKING",
			"request_id", requestID,
			"booking_id", booking.ID,
			"user_id", booking.UserID,
			"event_id", booking.EventID,
			"seats", booking.NumberOfSeats,
			"total_amount", booking.TotalAmount,
			"ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"timestamp", time.Now().UTC().Format(time.RFC3339),
		)
	}
}

type TokenVerifier interface {
	ValidateToken(tokenStr string) (*helpers.Principal, error)
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ApiResponse{
		Success: false,
		Message: "Unauthorized access",
		Error:   msg,
	})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if token, err := c.Cookie(AccessTokenKey); err == nil {
		return token
	}
	return ""
}

// AuthMiddleware resolves the caller from a bearer header or the
// access_token cookie. An invalid cookie token is refreshed through the
// account backend when a refresh_token cookie is present.
func AuthMiddleware(verifier TokenVerifier, userService *services.UserService, secureCookies bool, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			unauthorized(c, "authentication token not found")
			return
		}

		principal, err := verifier.ValidateToken(token)
		if err != nil {
			refreshToken, cookieErr := c.Cookie(RefreshTokenKey)
			if cookieErr != nil || !userService.Enabled() {
				unauthorized(c, err.Error())
				return
			}

			tokenRes, refreshErr := userService.RefreshToken(c.Request.Context(), refreshToken)
			if refreshErr != nil || tokenRes.AccessToken == "" {
				logger.Error("Token refresh failed", "error", refreshErr)
				unauthorized(c, "token expired and refresh failed")
				return
			}

			logger.Info("Token refreshed successfully",
				"user_id", tokenRes.User.ID,
				"expires_in", tokenRes.ExpiresIn,
			)
			SetAuthCookies(c, tokenRes.AccessToken, tokenRes.RefreshToken, tokenRes.ExpiresIn, secureCookies)

			token = tokenRes.AccessToken
			principal, err = verifier.ValidateToken(token)
			if err != nil {
				unauthorized(c, "refreshed token validation failed")
				return
			}
		}

		userService.ResolveRole(c.Request.Context(), principal, token)

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			unauthorized(c, "authentication required")
			return
		}
		if p.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse("insufficient permissions"))
			return
		}
		c.Next()
	}
}

func CurrentPrincipal(c *gin.Context) (*helpers.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*helpers.Principal)
	return p, ok && p != nil
}

func SetAuthCookies(c *gin.Context, accessToken, refreshToken string, expiresIn int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenKey, accessToken, expiresIn, "/", "", secure, true)
	if refreshToken != "" {
		c.SetCookie(RefreshTokenKey, refreshToken, refreshCookieMaxAge, "/", "", secure, true)
	}
}

func ClearAuthCookies(c *gin.Context, secure bool) {
	c.SetCookie(AccessTokenKey, "", -1, "/", "", secure, true)
	c.SetCookie(RefreshTokenKey, "", -1, "/", "", secure, true)
}
