// Package livequery bridges the document store's push subscriptions into
// channels of resource values a view-state store can range over. Each stream
// owns exactly one backend listener; closing the stream removes it exactly
// once, on every exit path.
package livequery

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ArtyomNalbandian/Dolcetto/internal/docstore"
	"github.com/ArtyomNalbandian/Dolcetto/internal/resource"
)

// Stream delivers resource values through a single-slot keep-latest channel:
// a consumer that falls behind skips superseded snapshots but always sees
// the final one. The channel is closed after teardown.
type Stream[T any] struct {
	events  chan resource.Resource[T]
	closeFn func()
	once    sync.Once
}

func newStream[T any](closeFn func()) *Stream[T] {
	return &Stream[T]{
		events:  make(chan resource.Resource[T], 1),
		closeFn: closeFn,
	}
}

// Events is the sequence of resource values. The first value is Loading.
func (s *Stream[T]) Events() <-chan resource.Resource[T] { return s.events }

// Close removes the underlying listener. Safe to call more than once.
func (s *Stream[T]) Close() {
	s.once.Do(s.closeFn)
}

func (s *Stream[T]) push(r resource.Resource[T]) {
	for {
		select {
		case s.events <- r:
			return
		default:
			// discard the superseded value sitting in the slot
			select {
			case <-s.events:
			default:
			}
		}
	}
}

// WatchCollection observes a collection query as Resource[[]T]. Records that
// fail to decode are dropped with a diagnostic, not allowed to fail the
// batch. Transport errors become Error values carrying the last good list;
// the stream keeps listening.
func WatchCollection[T any](ctx context.Context, store docstore.Store, q docstore.Query, log zerolog.Logger) (*Stream[[]T], error) {
	sub, err := store.Watch(ctx, q)
	if err != nil {
		return nil, err
	}
	st := newStream[[]T](sub.Close)
	st.push(resource.Loading[[]T]())

	go func() {
		defer close(st.events)
		var last []T
		var haveLast bool
		for ev := range sub.Events() {
			if ev.Err != nil {
				if haveLast {
					st.push(resource.ErrorWith(ev.Err.Error(), last))
				} else {
					st.push(resource.Error[[]T](ev.Err.Error()))
				}
				continue
			}
			items := make([]T, 0, len(ev.Docs))
			for _, doc := range ev.Docs {
				var item T
				if err := json.Unmarshal(doc.Data, &item); err != nil {
					log.Warn().
						Err(err).
						Str("collection", q.Collection).
						Str("document", doc.ID).
						Msg("skipping malformed record")
					continue
				}
				items = append(items, item)
			}
			last, haveLast = items, true
			st.push(resource.Success(items))
		}
	}()
	return st, nil
}

// WatchDocument observes a single document as Resource[T]. Unlike the
// collection variant there is no record to skip: a malformed or missing
// document is a hard error for that emission.
func WatchDocument[T any](ctx context.Context, store docstore.Store, q docstore.Query, log zerolog.Logger) (*Stream[T], error) {
	sub, err := store.Watch(ctx, q)
	if err != nil {
		return nil, err
	}
	st := newStream[T](sub.Close)
	st.push(resource.Loading[T]())

	go func() {
		defer close(st.events)
		var last T
		var haveLast bool
		for ev := range sub.Events() {
			switch {
			case ev.Err != nil:
				if haveLast {
					st.push(resource.ErrorWith(ev.Err.Error(), last))
				} else {
					st.push(resource.Error[T](ev.Err.Error()))
				}
			case len(ev.Docs) == 0:
				st.push(resource.Error[T](docstore.ErrNotFound.Error()))
			default:
				var v T
				if err := json.Unmarshal(ev.Docs[0].Data, &v); err != nil {
					log.Warn().
						Err(err).
						Str("collection", q.Collection).
						Str("document", ev.Docs[0].ID).
						Msg("malformed document")
					st.push(resource.Error[T]("malformed document: " + err.Error()))
					continue
				}
				last, haveLast = v, true
				st.push(resource.Success(v))
			}
		}
	}()
	return st, nil
}

// Transform derives a stream by mapping every value of in through fn.
// Closing the derived stream closes the source.
func Transform[S, T any](in *Stream[S], fn func(S) T) *Stream[T] {
	out := newStream[T](in.Close)
	go func() {
		defer close(out.events)
		for r := range in.Events() {
			switch r.Status() {
			case resource.StatusLoading:
				out.push(resource.Loading[T]())
			case resource.StatusSuccess:
				v, _ := r.Value()
				out.push(resource.Success(fn(v)))
			case resource.StatusError:
				if v, ok := r.Value(); ok {
					out.push(resource.ErrorWith(r.Message(), fn(v)))
				} else {
					out.push(resource.Error[T](r.Message()))
				}
			}
		}
	}()
	return out
}
