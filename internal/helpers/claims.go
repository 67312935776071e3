package helpers

import (
	"strings"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventease/internal/models"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID uuid.UUID `json:"id"`
	Role   string    `json:"role"`
	Email  string    `json:"email,omitempty"`
}

func (p *Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

func (p *Principal) IsOwner(userID uuid.UUID) bool {
	return p.UserID == userID
}

// NormalizeRole folds provider roles ("authenticated", "service_role", "")
// into the two roles the API knows.
func NormalizeRole(role string) string {
	if strings.EqualFold(strings.TrimSpace(role), models.RoleAdmin) {
		return models.RoleAdmin
	}
	return models.RoleUser
}
