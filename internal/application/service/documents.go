package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/domain/apperror"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// getDocument loads collection/id into a T and returns the stored version
func getDocument[T any](ctx context.Context, store port.DocumentStore, op, entityName, collection, id string) (*T, int64, error) {
	doc, err := store.Get(ctx, collection, id)
	if err != nil {
		if errors.Is(err, port.ErrDocumentNotFound) {
			return nil, 0, apperror.NotFound(op, entityName, id)
		}
		return nil, 0, storeError(op, err)
	}

	var v T
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return nil, 0, apperror.Wrap(apperror.KindDependency, op,
			fmt.Errorf("decode %s %s: %w", entityName, id, err))
	}
	return &v, doc.Version, nil
}

func encode(op string, v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindDependency, op, fmt.Errorf("encode document: %w", err))
	}
	return data, nil
}

// storeError classifies a document store failure. Already classified
// errors pass through so transaction callbacks can return them as is.
func storeError(op string, err error) error {
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, port.ErrDocumentNotFound):
		return apperror.Wrap(apperror.KindNotFound, op, err)
	case errors.Is(err, port.ErrVersionConflict):
		return &apperror.Error{
			Kind:    apperror.KindConflict,
			Op:      op,
			Message: "quotation was modified concurrently, reload and retry",
			Err:     err,
		}
	case errors.Is(err, port.ErrDocumentExists):
		return apperror.Wrap(apperror.KindConflict, op, err)
	default:
		return apperror.Wrap(apperror.KindDependency, op, err)
	}
}
