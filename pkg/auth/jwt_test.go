package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)

	token, err := iss.Issue("manager")
	require.NoError(t, err)

	claims, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "manager", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := NewIssuer("one", time.Hour).Issue("manager")
	require.NoError(t, err)

	_, err = NewIssuer("two", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	iss := NewIssuer("s3cret", time.Minute)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return start }

	token, err := iss.Issue("manager")
	require.NoError(t, err)

	iss.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = iss.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRequiresAdminRole(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)
	claims := Claims{
		Role: "waiter",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = iss.Verify(token)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestVerifyRejectsNoneAlg(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)
	claims := Claims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNoSecret(t *testing.T) {
	iss := NewIssuer("", time.Hour)

	_, err := iss.Issue("manager")
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = iss.Verify("anything")
	assert.ErrorIs(t, err, ErrNoSecret)
}
