package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCodec issues and verifies signed session tokens (HS256).
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionCodec creates a codec signing with secret; tokens live for ttl.
func NewSessionCodec(secret string, ttl time.Duration) *SessionCodec {
	return &SessionCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetClock replaces the codec's time source. Used in tests.
func (c *SessionCodec) SetClock(now func() time.Time) {
	c.now = now
}

// TTL returns the session lifetime.
func (c *SessionCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a session token for the given identity.
func (c *SessionCodec) Issue(userID, email string, role models.Role) (string, *models.SessionClaims, error) {
	if userID == "" {
		return "", nil, errors.New("cannot issue session without user id")
	}
	if !role.Valid() {
		return "", nil, models.ErrInvalidRole
	}

	now := c.now()
	claims := &models.SessionClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, claims, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Every failure yields models.ErrUnauthorized.
func (c *SessionCodec) Verify(tokenString string) (*models.SessionClaims, error) {
	if tokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
