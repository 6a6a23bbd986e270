package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webapp-auth/backend/internal/model"
)

var testUser = &model.User{ID: 7, Username: "admin"}

func TestIssue_ClaimsAndExpiry(t *testing.T) {
	issuer, err := NewSessionIssuer("secret", nil, 24*time.Hour)
	require.NoError(t, err)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)
	issuer.now = func() time.Time { return fixed }

	token, issuedAt, expiresAt, err := issuer.Issue(testUser)
	require.NoError(t, err)

	assert.True(t, fixed.Truncate(time.Second).Equal(issuedAt))
	assert.Equal(t, 24*time.Hour, expiresAt.Sub(issuedAt))

	claims := &sessionClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "7", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, expiresAt.Equal(claims.ExpiresAt.Time))
	assert.True(t, issuedAt.Equal(claims.IssuedAt.Time))
}

func TestIssue_UniqueTokens(t *testing.T) {
	issuer, err := NewSessionIssuer("secret", nil, time.Hour)
	require.NoError(t, err)

	a, _, _, err := issuer.Issue(testUser)
	require.NoError(t, err)
	b, _, _, err := issuer.Issue(testUser)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestParse_RoundTrip(t *testing.T) {
	issuer, err := NewSessionIssuer("secret", nil, time.Hour)
	require.NoError(t, err)

	token, _, _, err := issuer.Issue(testUser)
	require.NoError(t, err)

	user, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "admin", user.Username)
	assert.Equal(t, token, user.Token)
}

func TestParse_Rejects(t *testing.T) {
	issuer, err := NewSessionIssuer("secret", nil, time.Hour)
	require.NoError(t, err)
	valid, _, _, err := issuer.Issue(testUser)
	require.NoError(t, err)

	other, err := NewSessionIssuer("other-secret", nil, time.Hour)
	require.NoError(t, err)
	foreign, _, _, err := other.Issue(testUser)
	require.NoError(t, err)

	expiring, err := NewSessionIssuer("secret", nil, time.Hour)
	require.NoError(t, err)
	expiring.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, _, err := expiring.Issue(testUser)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, sessionClaims{Username: "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := map[string]string{
		"wrong-key": foreign,
		"expired":   expired,
		"alg-none":  unsigned,
		"tampered":  tampered,
		"malformed": "not.a.jwt",
		"empty":     "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Parse(token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestParse_AcceptsPreviousKeys(t *testing.T) {
	old, err := NewSessionIssuer("old-secret", nil, time.Hour)
	require.NoError(t, err)
	token, _, _, err := old.Issue(testUser)
	require.NoError(t, err)

	rotated, err := NewSessionIssuer("new-secret", []string{"old-secret"}, time.Hour)
	require.NoError(t, err)

	user, err := rotated.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)

	fresh, _, _, err := rotated.Issue(testUser)
	require.NoError(t, err)
	_, err = old.Parse(fresh)
	assert.ErrorIs(t, err, ErrUnauthorized, "new tokens are signed with the new key only")
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, hashToken("abc"), hashToken("abc"))
	assert.NotEqual(t, hashToken("abc"), hashToken("abd"))
	assert.NotContains(t, hashToken("abc"), "abc")
}
