package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventease/internal/middleware"
	"github.com/joshua-takyi/eventease/internal/models"
	"github.com/joshua-takyi/eventease/internal/services"
)

func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// Login exchanges email and password for session cookies through the
// account backend.
func Login(u *services.UserService, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !u.Enabled() {
			c.JSON(http.StatusNotImplemented, models.ErrorResponse(services.ErrIdentityDisabled.Error()))
			return
		}

		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("email and password are required"))
			return
		}

		res, err := u.AuthenticateUser(c.Request.Context(), req)
		if err != nil {
			if errors.Is(err, services.ErrIdentityDisabled) {
				c.JSON(http.StatusNotImplemented, models.ErrorResponse(err.Error()))
				return
			}
			c.JSON(http.StatusUnauthorized, models.ErrorResponse("invalid email or password"))
			return
		}

		middleware.SetAuthCookies(c, res.AccessToken, res.RefreshToken, res.ExpiresIn, secureCookies)
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
			"user_id":    res.User.ID,
			"email":      res.User.Email,
			"expires_in": res.ExpiresIn,
		}, "Logged in successfully"))
	}
}

func Logout(secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.ClearAuthCookies(c, secureCookies)
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Logged out successfully"))
	}
}
