package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/toleubekov/kitchen-sync/internal/domain"
)

// Identity is what the authentication collaborator asserts about a caller.
// The tenant check on session handshake uses this, never a client-supplied
// tenant id alone.
type Identity struct {
	Subject  string
	TenantID string
}

// TokenVerifier validates a handshake auth token issued by the external
// authentication collaborator.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

type Claims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

type jwtVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) TokenVerifier {
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	if claims.Subject == "" || claims.TenantID == "" {
		return Identity{}, fmt.Errorf("%w: token missing subject or tenant", domain.ErrUnauthorized)
	}

	return Identity{Subject: claims.Subject, TenantID: claims.TenantID}, nil
}
