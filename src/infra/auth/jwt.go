// Package auth verifies access tokens issued by the identity service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tapround/src/core/domain"
	"tapround/src/core/ports"
)

// Claims is the access token payload. Subject carries the user id.
type Claims struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTResolver implements ports.PrincipalResolver for HS256 tokens.
type JWTResolver struct {
	secret []byte
	now    func() time.Time
}

var _ ports.PrincipalResolver = (*JWTResolver)(nil)

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for p valid for ttl.
func (r *JWTResolver) Issue(p domain.Principal, ttl time.Duration) (string, error) {
	now := r.now()
	claims := Claims{
		Username: p.Username,
		Role:     p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

// Resolve validates token and returns its principal. Every failure is an
// unauthorized domain error.
func (r *JWTResolver) Resolve(_ context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, domain.NewUnauthorizedError("authentication required")
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	}, jwt.WithTimeFunc(r.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.NewUnauthorizedError("token expired")
		}
		return nil, domain.NewUnauthorizedError("invalid token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.NewUnauthorizedError("invalid token subject")
	}
	if !claims.Role.Valid() {
		return nil, domain.NewUnauthorizedError("invalid token role")
	}

	return &domain.Principal{ID: id, Username: claims.Username, Role: claims.Role}, nil
}
