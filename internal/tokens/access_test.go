package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/taskhub_auth/internal/models"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestIssuer(t *testing.T, ttl time.Duration) (*Issuer, *fakeClock) {
	t.Helper()
	iss, err := NewIssuer([]byte("test-jwt-secret"), ttl)
	require.NoError(t, err)
	clk := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	iss.Now = clk.Now
	return iss, clk
}

func TestNewIssuer_RejectsMisconfiguration(t *testing.T) {
	t.Parallel()

	_, err := NewIssuer(nil, time.Minute)
	require.Error(t, err)

	_, err = NewIssuer([]byte("s"), 0)
	require.Error(t, err)
}

func TestIssuer_IssueValidate_RoundTrip(t *testing.T) {
	t.Parallel()

	iss, clk := newTestIssuer(t, 15*time.Minute)
	user := &models.User{Username: "alice", Role: models.RoleAdmin}

	token, exp, err := iss.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, clk.now.Add(15*time.Minute), exp)

	claims, err := iss.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, clk.now, claims.IssuedAt.Time, time.Second)
	assert.Equal(t, models.Identity{Username: "alice", Role: models.RoleAdmin}, claims.Identity())
}

func TestIssuer_Validate_Expiry(t *testing.T) {
	t.Parallel()

	for _, ttl := range []time.Duration{time.Second, time.Minute, 2 * time.Hour} {
		iss, clk := newTestIssuer(t, ttl)
		token, _, err := iss.Issue(&models.User{Username: "bob", Role: models.RoleUser})
		require.NoError(t, err)

		clk.Advance(ttl - time.Second/2)
		_, err = iss.Validate(token)
		require.NoError(t, err, "ttl %s", ttl)

		clk.Advance(time.Second)
		_, err = iss.Validate(token)
		assert.ErrorIs(t, err, ErrExpired, "ttl %s", ttl)
	}
}

func TestIssuer_Validate_RejectsTampering(t *testing.T) {
	t.Parallel()

	iss, _ := newTestIssuer(t, time.Minute)
	token, _, err := iss.Issue(&models.User{Username: "bob", Role: models.RoleUser})
	require.NoError(t, err)

	other, err := NewIssuer([]byte("other-secret"), time.Minute)
	require.NoError(t, err)
	other.Now = iss.Now
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Role:             models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "bob", ExpiresAt: jwt.NewNumericDate(iss.Now().Add(time.Hour))},
	})
	forgedStr, err := forged.SigningString()
	require.NoError(t, err)
	_, err = iss.Validate(forgedStr + "." + parts[2])
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestIssuer_Validate_SignatureCheckedBeforeExpiry(t *testing.T) {
	t.Parallel()

	iss, clk := newTestIssuer(t, time.Minute)
	other, err := NewIssuer([]byte("other-secret"), time.Minute)
	require.NoError(t, err)
	other.Now = clk.Now

	token, _, err := other.Issue(&models.User{Username: "eve", Role: models.RoleUser})
	require.NoError(t, err)
	clk.Advance(time.Hour)

	_, err = iss.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestIssuer_Validate_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	iss, _ := newTestIssuer(t, time.Minute)
	none := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "eve", ExpiresAt: jwt.NewNumericDate(iss.Now().Add(time.Hour))},
	})
	tokenStr, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.Validate(tokenStr)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestIssuer_Validate_Malformed(t *testing.T) {
	t.Parallel()

	iss, _ := newTestIssuer(t, time.Minute)
	_, err := iss.Validate("not-a-valid-jwt")
	assert.ErrorIs(t, err, ErrMalformed)
}
