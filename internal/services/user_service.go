package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshua-takyi/eventease/internal/helpers"
	"github.com/joshua-takyi/eventease/internal/models"
	"github.com/supabase-community/gotrue-go/types"
)

var ErrIdentityDisabled = errors.New("identity provider is not configured")

// UserService fronts the optional account backend. A nil repo disables
// login and refresh; bearer tokens still work.
type UserService struct {
	userRepo models.IdentityRepo
	logger   *slog.Logger
}

func NewUserService(userRepo models.IdentityRepo, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
	}
}

func (us *UserService) Enabled() bool {
	return us != nil && us.userRepo != nil
}

func (us *UserService) AuthenticateUser(ctx context.Context, req models.LoginRequest) (*types.TokenResponse, error) {
	if !us.Enabled() {
		return nil, ErrIdentityDisabled
	}
	if err := models.Validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid credentials format: %v", err)
	}
	response, err := us.userRepo.AuthenticateUser(ctx, req.Email, req.Password)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %v", err)
	}
	return response, nil
}

func (us *UserService) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	if !us.Enabled() {
		return nil, ErrIdentityDisabled
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}
	response, err := us.userRepo.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %v", err)
	}
	return response, nil
}

// ResolveRole replaces the token's role with the profile role when an
// account backend is configured. Lookup failures keep the token role.
func (us *UserService) ResolveRole(ctx context.Context, p *helpers.Principal, accessToken string) {
	if !us.Enabled() {
		return
	}
	profile, err := us.userRepo.GetProfile(ctx, p.UserID, accessToken)
	if err != nil {
		if !errors.Is(err, models.ErrProfileNotFound) {
			us.logger.Warn("profile lookup failed", "user_id", p.UserID, "error", err)
		}
		return
	}
	p.Role = helpers.NormalizeRole(profile.Role)
}
