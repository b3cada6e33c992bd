package port

import (
	"context"
	"errors"

	"github.com/garyjia/sitequote/internal/domain/entity"
)

// ErrUnauthenticated is returned by IdentityResolver for a missing or bad credential
var ErrUnauthenticated = errors.New("unauthenticated")

// Notifier delivers one notification to its recipient
type Notifier interface {
	Notify(ctx context.Context, n *entity.Notification) error
}

// IdentityResolver turns a request credential into the calling actor
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*entity.Actor, error)
}
