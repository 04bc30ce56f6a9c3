package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_Issue(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(testSigningKey, "clinic", 2*time.Hour)
	issuer.now = func() time.Time { return fixed }

	signed, exp, err := issuer.Issue("user-1")
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(2*time.Hour), exp)

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (interface{}, error) {
		return testSigningKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return fixed.Add(time.Minute) }))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "clinic", claims.Issuer)
}

func TestNewOpaqueToken(t *testing.T) {
	raw1, hash1, err := NewOpaqueToken()
	require.NoError(t, err)
	raw2, _, err := NewOpaqueToken()
	require.NoError(t, err)

	assert.NotEqual(t, raw1, raw2)
	assert.Len(t, raw1, 43) // 32 bytes, unpadded base64url
	assert.False(t, strings.ContainsAny(raw1, "+/="))
	assert.Equal(t, HashToken(raw1), hash1)
	assert.Len(t, hash1, 64)
}

func TestPasswordHasher(t *testing.T) {
	p := NewPasswordHasherWithCost(4)
	hash, err := p.Hash("segredo1")
	require.NoError(t, err)

	ok, err := p.Verify(hash, "segredo1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Verify(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}
