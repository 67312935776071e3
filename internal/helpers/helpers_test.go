package helpers

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestValidateTokenRoundTrip(t *testing.T) {
	v := NewHMACValidator(testSecret)
	id := uuid.New()

	token, err := IssueToken(testSecret, Principal{UserID: id, Role: "admin", Email: "a@b.co"}, time.Minute)
	require.NoError(t, err)

	p, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, p.UserID)
	assert.True(t, p.IsAdmin())
	assert.True(t, p.IsOwner(id))
	assert.Equal(t, "a@b.co", p.Email)
}

func TestValidateTokenRejects(t *testing.T) {
	v := NewHMACValidator(testSecret)
	p := Principal{UserID: uuid.New(), Role: "user"}

	expired, err := IssueToken(testSecret, p, -time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongKey, err := IssueToken("other-secret", p, time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(wrongKey)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: p.UserID.String()},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = v.ValidateToken(noExpiry)
	assert.ErrorIs(t, err, ErrInvalidToken)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "someone",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = v.ValidateToken(badSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRoles(t *testing.T) {
	v := NewHMACValidator(testSecret)
	id := uuid.New()

	claims := CustomClaims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	plain, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	p, err := v.ValidateToken(plain)
	require.NoError(t, err)
	assert.Equal(t, "user", p.Role)

	claims.AppMetadata.Roles = []string{"admin"}
	elevated, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	p, err = v.ValidateToken(elevated)
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Role)
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, "admin", NormalizeRole(" ADMIN "))
	assert.Equal(t, "user", NormalizeRole("service_role"))
	assert.Equal(t, "user", NormalizeRole(""))
}

func TestNewTokenValidatorRequiresKey(t *testing.T) {
	_, err := NewTokenValidator("", "", nil)
	assert.Error(t, err)

	v, err := NewTokenValidator(testSecret, "", nil)
	require.NoError(t, err)
	v.Close()
}

// jwksServer serves a key set that tests can rotate while a validator is live.
type jwksServer struct {
	mu      sync.Mutex
	keys    []map[string]string
	fetches atomic.Int32
}

func (s *jwksServer) add(t *testing.T, kid string, key *rsa.PrivateKey) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, map[string]string{
		"kty": "RSA",
		"kid": kid,
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	})
}

func (s *jwksServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.fetches.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"keys": s.keys})
}

func signRS256(t *testing.T, kid string, key *rsa.PrivateKey, subject uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, CustomClaims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestTokenValidatorPicksUpRotatedJWKSKey(t *testing.T) {
	first, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	second, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keys := &jwksServer{}
	keys.add(t, "k1", first)
	srv := httptest.NewServer(keys)
	defer srv.Close()

	v, err := NewTokenValidator("", srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer v.Close()

	id := uuid.New()
	p, err := v.ValidateToken(signRS256(t, "k1", first, id))
	require.NoError(t, err)
	assert.Equal(t, id, p.UserID)
	assert.Equal(t, int32(1), keys.fetches.Load())

	keys.add(t, "k2", second)

	p, err = v.ValidateToken(signRS256(t, "k2", second, id))
	require.NoError(t, err)
	assert.Equal(t, id, p.UserID)
	assert.Equal(t, "user", p.Role)
	assert.Equal(t, int32(2), keys.fetches.Load())
}
