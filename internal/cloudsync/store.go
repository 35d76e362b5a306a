// Package cloudsync mirrors reminders, categories and checklist items between
// the local store and a per-user remote document store.
package cloudsync

import (
	"context"
	"errors"
)

const (
	CollectionReminders  = "reminders"
	CollectionCategories = "categories"
	CollectionChecklist  = "checklistItems"
)

// Document is one remote record keyed by the decimal row id.
type Document struct {
	ID   string
	Data map[string]any
}

// RemoteStore is a per-user collection of JSON-like documents.
type RemoteStore interface {
	Put(ctx context.Context, userID, collection string, docs []Document) error
	Fetch(ctx context.Context, userID, collection string) ([]Document, error)
	Delete(ctx context.Context, userID, collection, id string) error
	// Listen calls fn with changed documents until ctx is done.
	Listen(ctx context.Context, userID, collection string, fn func([]Document)) error
}

// Error is a failed sync operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "sync " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrap turns err into a *Error, leaving context cancellation untouched.
func wrap(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Op: op, Err: err}
}
