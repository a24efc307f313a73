// Package state holds the single-value stores a screen reads its state from.
package state

import (
	"context"
	"sync"
)

// Value is a watchable current value. Watchers receive the current value on
// subscription and every replacement afterwards through a keep-latest slot,
// so a slow watcher never blocks a writer and never misses the newest value.
type Value[T any] struct {
	mu       sync.Mutex
	current  T
	watchers map[int]chan T
	nextID   int
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current:  initial,
		watchers: make(map[int]chan T),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the current value and notifies all watchers.
func (v *Value[T]) Set(t T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = t
	for _, ch := range v.watchers {
		sendLatest(ch, t)
	}
}

// Watch returns a channel that replays the current value and then delivers
// every subsequent one. The watcher is deregistered and its channel closed
// when ctx ends.
func (v *Value[T]) Watch(ctx context.Context) <-chan T {
	ch := make(chan T, 1)
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.watchers[id] = ch
	sendLatest(ch, v.current)
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.watchers, id)
		v.mu.Unlock()
		close(ch)
	}()
	return ch
}

func sendLatest[T any](ch chan T, t T) {
	for {
		select {
		case ch <- t:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
