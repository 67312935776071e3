package helpers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type CustomClaims struct {
	Role        string `json:"role"`
	Email       string `json:"email"`
	AppMetadata struct {
		Provider string   `json:"provider,omitempty"`
		Roles    []string `json:"roles,omitempty"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

// TokenValidator verifies bearer tokens either with a shared HS256 secret or
// against a remote JWKS. The key set is fetched once and refreshed in the
// background until Close.
type TokenValidator struct {
	keyFunc jwt.Keyfunc
	methods []string
	jwks    *keyfunc.JWKS
}

func NewTokenValidator(secret, jwksURL string, logger *slog.Logger) (*TokenValidator, error) {
	if jwksURL != "" {
		// The refresh goroutine outlives any request or startup context; Close ends it.
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
			Ctx:               context.Background(),
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				logger.Error("JWKS refresh failed", "url", jwksURL, "error", err)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load JWKS from %s: %v", jwksURL, err)
		}
		return &TokenValidator{
			keyFunc: jwks.Keyfunc,
			methods: []string{"RS256", "ES256"},
			jwks:    jwks,
		}, nil
	}

	if secret == "" {
		return nil, errors.New("either JWT_SECRET or JWKS_URL must be set")
	}
	return NewHMACValidator(secret), nil
}

func NewHMACValidator(secret string) *TokenValidator {
	key := []byte(secret)
	return &TokenValidator{
		keyFunc: func(*jwt.Token) (interface{}, error) { return key, nil },
		methods: []string{jwt.SigningMethodHS256.Alg()},
	}
}

func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func (v *TokenValidator) ValidateToken(tokenStr string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, v.keyFunc,
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	role := claims.Role
	if slices.Contains(claims.AppMetadata.Roles, "admin") {
		role = "admin"
	}

	return &Principal{
		UserID: userID,
		Role:   NormalizeRole(role),
		Email:  claims.Email,
	}, nil
}

// IssueToken signs an HS256 token for the principal, for local development
// and tests against a JWT_SECRET deployment.
func IssueToken(secret string, p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		Role:  p.Role,
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
