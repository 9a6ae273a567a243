// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the external auth service vouches for.
type Identity struct {
	UserID string
	Name   string // may be empty; callers fall back to the user directory
}

var ErrInvalidToken = errors.New("invalid token")

// Verifier checks Ed25519-signed JWTs issued by the auth service. This server
// never issues tokens.
type Verifier struct {
	publicKey ed25519.PublicKey
}

func NewVerifier(publicKey ed25519.PublicKey) (*Verifier, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(publicKey))
	}
	return &Verifier{publicKey: publicKey}, nil
}

// LoadVerifier reads a raw ed25519 public key from publicPath.
func LoadVerifier(publicPath string) (*Verifier, error) {
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	return NewVerifier(ed25519.PublicKey(publicKeyData))
}

// Verify parses tokenString and returns the identity in its "sub" and "name"
// (or "username") claims. Expired tokens are rejected.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: invalid jwt claims", ErrInvalidToken)
	}
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return Identity{}, fmt.Errorf("%w: missing sub in jwt", ErrInvalidToken)
	}

	id := Identity{UserID: userID}
	if name, ok := claims["name"].(string); ok {
		id.Name = name
	} else if name, ok := claims["username"].(string); ok {
		id.Name = name
	}
	return id, nil
}
