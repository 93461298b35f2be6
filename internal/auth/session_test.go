package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	keys, err := NewKeys(time.Hour)
	require.NoError(t, err)

	userID := uuid.New()
	token, err := keys.CreateJWT(userID)
	require.NoError(t, err)

	got, err := keys.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestJWTRejectsForeignKey(t *testing.T) {
	a, err := NewKeys(0)
	require.NoError(t, err)
	b, err := NewKeys(0)
	require.NoError(t, err)

	token, err := a.CreateJWT(uuid.New())
	require.NoError(t, err)

	_, err = b.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestJWTRejectsExpired(t *testing.T) {
	keys, err := NewKeys(0)
	require.NoError(t, err)

	claims := jwt.MapClaims{"sub": uuid.NewString(), "exp": time.Now().Add(-time.Minute).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(keys.private)
	require.NoError(t, err)

	_, err = keys.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestJWTRejectsNonUUIDSubject(t *testing.T) {
	keys, err := NewKeys(0)
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{"sub": "alice"}).SignedString(keys.private)
	require.NoError(t, err)

	_, err = keys.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestLoadKeys(t *testing.T) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "ed25519")
	pubPath := filepath.Join(dir, "ed25519.pub")
	require.NoError(t, os.WriteFile(privPath, private, 0o600))
	require.NoError(t, os.WriteFile(pubPath, public, 0o644))

	keys, err := LoadKeys(privPath, pubPath, time.Hour)
	require.NoError(t, err)
	userID := uuid.New()
	token, err := keys.CreateJWT(userID)
	require.NoError(t, err)

	verifier, err := LoadKeys("", pubPath, 0)
	require.NoError(t, err)
	got, err := verifier.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = verifier.CreateJWT(userID)
	assert.Error(t, err)
}
