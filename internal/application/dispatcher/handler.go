package dispatcher

import (
	"context"

	"github.com/garyjia/sitequote/internal/domain/event"
)

// Handler consumes one side-effect event
type Handler func(ctx context.Context, evt *event.Event) error

// subscription pairs a handler with the name used in logs
type subscription struct {
	name    string
	handler Handler
}
