// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Keys signs and verifies session tokens with an ed25519 key pair.
type Keys struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey

	// ttl is the token lifetime; zero means tokens carry no exp claim.
	ttl time.Duration
}

// NewKeys generates a fresh ed25519 key pair at runtime.
func NewKeys(ttl time.Duration) (*Keys, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Keys{private: private, public: public, ttl: ttl}, nil
}

// LoadKeys reads raw ed25519 keys from file. The private key may be empty when this
// process only verifies tokens issued elsewhere.
func LoadKeys(privatePath, publicPath string, ttl time.Duration) (*Keys, error) {
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(publicKeyData))
	}
	k := &Keys{public: ed25519.PublicKey(publicKeyData), ttl: ttl}

	if privatePath != "" {
		privateKeyData, err := os.ReadFile(privatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key file: %w", err)
		}
		k.private = ed25519.PrivateKey(privateKeyData)
	}
	return k, nil
}

// CreateJWT creates a signed token with "sub" = userID and an exp claim when a TTL is set.
func (k *Keys) CreateJWT(userID uuid.UUID) (string, error) {
	if k.private == nil {
		return "", fmt.Errorf("no private key loaded")
	}
	claims := jwt.MapClaims{
		"sub": userID.String(),
	}
	if k.ttl > 0 {
		claims["exp"] = time.Now().Add(k.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(k.private)
}

// AuthenticateJWT verifies a token and returns its subject as a user id.
func (k *Keys) AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return k.public, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}

	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, fmt.Errorf("missing sub in jwt")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed sub in jwt: %w", err)
	}
	return userID, nil
}
