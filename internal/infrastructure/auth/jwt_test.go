package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/domain/entity"
)

func newResolver(t *testing.T) *JWTResolver {
	t.Helper()
	r, err := NewJWTResolver("test-secret", "sitequote", time.Hour)
	require.NoError(t, err)
	return r
}

func TestJWTResolver_RoundTrip(t *testing.T) {
	r := newResolver(t)
	actor := entity.Actor{UserID: "pm-1", Role: entity.RoleProjectManager, Email: "pm@example.com"}

	token, err := r.Issue(actor)
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, actor, *got)
}

func TestJWTResolver_Rejects(t *testing.T) {
	r := newResolver(t)
	valid, err := r.Issue(entity.Actor{UserID: "c-1", Role: entity.RoleClient})
	require.NoError(t, err)

	other, err := NewJWTResolver("other-secret", "sitequote", time.Hour)
	require.NoError(t, err)
	wrongKey, err := other.Issue(entity.Actor{UserID: "c-1", Role: entity.RoleClient})
	require.NoError(t, err)

	expired := newResolver(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(entity.Actor{UserID: "c-1", Role: entity.RoleClient})
	require.NoError(t, err)

	badRole, err := r.Issue(entity.Actor{UserID: "c-1", Role: "Janitor"})
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role:             string(entity.RoleClient),
		RegisteredClaims: jwt.RegisteredClaims{Subject: "c-1", Issuer: "sitequote"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"tampered", valid + "x"},
		{"wrong key", wrongKey},
		{"expired", old},
		{"unknown role", badRole},
		{"alg none", noneToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, port.ErrUnauthenticated)
		})
	}
}

func TestNewJWTResolver_RequiresSecret(t *testing.T) {
	_, err := NewJWTResolver("", "", time.Hour)
	assert.Error(t, err)
}
