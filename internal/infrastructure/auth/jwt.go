package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/domain/entity"
)

// Claims are the token claims the service understands
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTResolver resolves HS256 bearer tokens into actors
type JWTResolver struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTResolver creates a resolver; issuer may be empty to skip the iss check
func NewJWTResolver(secret, issuer string, ttl time.Duration) (*JWTResolver, error) {
	if secret == "" {
		return nil, errors.New("jwt secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTResolver{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Resolve validates the token and returns the actor it names
func (r *JWTResolver) Resolve(ctx context.Context, token string) (*entity.Actor, error) {
	if token == "" {
		return nil, port.ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", port.ErrUnauthenticated, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", port.ErrUnauthenticated)
	}
	role := entity.Role(claims.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", port.ErrUnauthenticated, claims.Role)
	}

	return &entity.Actor{
		UserID: claims.Subject,
		Role:   role,
		Email:  claims.Email,
	}, nil
}

// Issue signs a token for actor. Used by tooling and tests; the service
// itself only verifies tokens.
func (r *JWTResolver) Issue(actor entity.Actor) (string, error) {
	now := r.now()
	claims := Claims{
		Role:  string(actor.Role),
		Email: actor.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

var _ port.IdentityResolver = (*JWTResolver)(nil)
