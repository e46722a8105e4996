package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Skotchmaster/taskhub_auth/internal/models"
)

var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("malformed token")
)

type AccessClaims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) Identity() models.Identity {
	return models.Identity{Username: c.Subject, Role: c.Role}
}

// Issuer mints and checks HS256 access tokens. It holds no mutable state once built.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	Now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("tokens: signing secret is empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("tokens: access ttl must be positive, got %s", ttl)
	}
	return &Issuer{secret: secret, ttl: ttl, Now: time.Now}, nil
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

func (i *Issuer) Issue(user *models.User) (string, time.Time, error) {
	now := i.Now().UTC()
	exp := now.Add(i.ttl)

	claims := AccessClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, exp, nil
}

// Validate checks the signature before expiry, so a tampered token is never
// reported as merely expired.
func (i *Issuer) Validate(tokenStr string) (*AccessClaims, error) {
	var claims AccessClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected sign method %q", t.Method.Alg())
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if claims.ExpiresAt == nil || !i.Now().Before(claims.ExpiresAt.Time) {
		return nil, ErrExpired
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	return &claims, nil
}
