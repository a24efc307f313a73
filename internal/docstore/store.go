// Package docstore abstracts the hosted document database the application is
// built on: keyed documents grouped into collections, single-field updates,
// optimistic-retry transactions and push subscriptions that deliver a full
// snapshot of the watched query on every change.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a transaction keeps losing the
	// read-version check after exhausting its retry budget.
	ErrConflict = errors.New("transaction conflict, retries exhausted")
)

// Query selects the documents a subscription or list observes. A non-empty
// DocumentID switches to single-document mode and the other selectors are
// ignored. Filter matches top-level fields by equality.
type Query struct {
	Collection string
	DocumentID string
	Filter     map[string]any
	OrderBy    string
	Descending bool
}

// Snapshot is one document as the store last saw it.
type Snapshot struct {
	ID   string
	Data json.RawMessage
}

// Event is a single push delivery: either a full result snapshot or a
// transport error. Errors are not terminal; the subscription keeps
// listening.
type Event struct {
	Docs []Snapshot
	Err  error
}

// Subscription is a live listener on a query. Events are delivered through a
// single-slot keep-latest channel: a slow consumer may miss superseded
// intermediate snapshots but never the final one. Close removes the backend
// listener exactly once; the events channel is closed afterwards and nothing
// is delivered past that point.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// Tx is the handle a transaction body uses. Reads are version-tracked;
// writes are staged and applied atomically at commit, which fails when any
// read document changed underneath.
type Tx interface {
	Get(collection, id string, out any) error
	Set(collection, id string, doc any) error
	UpdateField(collection, id, field string, value any) error
}

// Store is the backend collaborator contract.
type Store interface {
	Get(ctx context.Context, collection, id string, out any) error
	Set(ctx context.Context, collection, id string, doc any) error
	UpdateField(ctx context.Context, collection, id, field string, value any) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, q Query) ([]Snapshot, error)
	Watch(ctx context.Context, q Query) (Subscription, error)
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// pushLatest delivers ev into a single-slot channel, discarding a superseded
// event that the consumer has not picked up yet. Callers must be serialized
// per channel.
func pushLatest(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
