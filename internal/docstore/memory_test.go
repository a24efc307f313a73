package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func recvEvent(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.Get(ctx, "docs", "a", &testDoc{})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "docs", "a", testDoc{Name: "first", Count: 1}))

	var got testDoc
	require.NoError(t, store.Get(ctx, "docs", "a", &got))
	assert.Equal(t, testDoc{Name: "first", Count: 1}, got)

	require.NoError(t, store.UpdateField(ctx, "docs", "a", "count", 5))
	require.NoError(t, store.Get(ctx, "docs", "a", &got))
	assert.Equal(t, 5, got.Count)
	assert.Equal(t, "first", got.Name, "other fields untouched")

	assert.ErrorIs(t, store.UpdateField(ctx, "docs", "missing", "count", 1), ErrNotFound)

	require.NoError(t, store.Delete(ctx, "docs", "a"))
	assert.ErrorIs(t, store.Get(ctx, "docs", "a", &got), ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "docs", "a"), ErrNotFound)
}

func TestMemoryStoreListOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "docs", "x", testDoc{Name: "2024-01-02"}))
	require.NoError(t, store.Set(ctx, "docs", "y", testDoc{Name: "2024-01-01"}))
	require.NoError(t, store.Set(ctx, "docs", "z", testDoc{Name: "2024-01-03"}))

	snaps, err := store.List(ctx, Query{Collection: "docs", OrderBy: "name", Descending: true})
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, "z", snaps[0].ID)
	assert.Equal(t, "x", snaps[1].ID)
	assert.Equal(t, "y", snaps[2].ID)
}

func TestMemoryStoreWatchInitialSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "docs", "a", testDoc{Name: "seed"}))

	sub, err := store.Watch(ctx, Query{Collection: "docs"})
	require.NoError(t, err)
	defer sub.Close()

	ev := recvEvent(t, sub)
	require.NoError(t, ev.Err)
	require.Len(t, ev.Docs, 1)
	assert.Equal(t, "a", ev.Docs[0].ID)
}

func TestMemoryStoreWatchKeepsLatest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sub, err := store.Watch(ctx, Query{Collection: "docs"})
	require.NoError(t, err)
	defer sub.Close()

	// Burst of writes with no reader: intermediate snapshots may be
	// superseded but the final one must be delivered.
	for i := 1; i <= 10; i++ {
		require.NoError(t, store.Set(ctx, "docs", "a", testDoc{Count: i}))
	}

	var last Event
	for {
		ev := recvEvent(t, sub)
		require.NoError(t, ev.Err)
		last = ev
		if len(ev.Docs) == 1 && string(ev.Docs[0].Data) == `{"name":"","count":10}` {
			break
		}
	}
	require.Len(t, last.Docs, 1)
}

func TestMemoryStoreWatchCloseDeregisters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sub, err := store.Watch(ctx, Query{Collection: "docs"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Listeners())

	sub.Close()
	assert.Equal(t, 0, store.Listeners())

	// Close is idempotent.
	sub.Close()
	assert.Equal(t, 0, store.Listeners())

	// A new watch after teardown is independent and gets its own snapshot.
	require.NoError(t, store.Set(ctx, "docs", "a", testDoc{Name: "later"}))
	sub2, err := store.Watch(ctx, Query{Collection: "docs"})
	require.NoError(t, err)
	defer sub2.Close()
	assert.Equal(t, 1, store.Listeners())

	ev := recvEvent(t, sub2)
	require.Len(t, ev.Docs, 1)
}

func TestMemoryStoreWatchContextCancel(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := store.Watch(ctx, Query{Collection: "docs"})
	require.NoError(t, err)
	require.Equal(t, 1, store.Listeners())

	cancel()
	assert.Eventually(t, func() bool {
		return store.Listeners() == 0
	}, 2*time.Second, 10*time.Millisecond, "cancelled context must remove the listener")
}

func TestMemoryStoreWatchDocumentID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "docs", "a", testDoc{Name: "mine"}))
	require.NoError(t, store.Set(ctx, "docs", "b", testDoc{Name: "other"}))

	sub, err := store.Watch(ctx, Query{Collection: "docs", DocumentID: "a"})
	require.NoError(t, err)
	defer sub.Close()

	ev := recvEvent(t, sub)
	require.Len(t, ev.Docs, 1)
	assert.Equal(t, "a", ev.Docs[0].ID)
}

func TestMemoryStoreTransactionReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "docs", "a", testDoc{Count: 1}))

	err := store.RunTransaction(ctx, func(tx Tx) error {
		var doc testDoc
		if err := tx.Get("docs", "a", &doc); err != nil {
			return err
		}
		return tx.UpdateField("docs", "a", "count", doc.Count+1)
	})
	require.NoError(t, err)

	var got testDoc
	require.NoError(t, store.Get(ctx, "docs", "a", &got))
	assert.Equal(t, 2, got.Count)
}

func TestMemoryStoreTransactionRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "docs", "a", testDoc{Count: 0}))

	attempts := 0
	err := store.RunTransaction(ctx, func(tx Tx) error {
		attempts++
		var doc testDoc
		if err := tx.Get("docs", "a", &doc); err != nil {
			return err
		}
		if attempts == 1 {
			// Simulate a concurrent writer landing between read and commit.
			require.NoError(t, store.Set(ctx, "docs", "a", testDoc{Count: 100}))
		}
		return tx.UpdateField("docs", "a", "count", doc.Count+1)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts, "first attempt must be rejected and re-run")

	var got testDoc
	require.NoError(t, store.Get(ctx, "docs", "a", &got))
	assert.Equal(t, 101, got.Count, "retry must observe the concurrent write")
}

func TestMemoryStoreTransactionConflictBudget(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "docs", "a", testDoc{Count: 0}))

	err := store.RunTransaction(ctx, func(tx Tx) error {
		var doc testDoc
		if err := tx.Get("docs", "a", &doc); err != nil {
			return err
		}
		// Every attempt races with a writer, so the budget runs out.
		require.NoError(t, store.Set(ctx, "docs", "a", testDoc{Count: doc.Count + 1}))
		return tx.Set("docs", "a", testDoc{Count: -1})
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStoreTransactionNotFoundReadConflictsWithCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	attempts := 0
	err := store.RunTransaction(ctx, func(tx Tx) error {
		attempts++
		var doc testDoc
		err := tx.Get("docs", "a", &doc)
		if attempts == 1 {
			require.ErrorIs(t, err, ErrNotFound)
			// Concurrent creation of the same document.
			require.NoError(t, store.Set(ctx, "docs", "a", testDoc{Count: 7}))
			return tx.Set("docs", "a", testDoc{Count: 1})
		}
		require.NoError(t, err, "retry must see the created document")
		return tx.UpdateField("docs", "a", "count", doc.Count+1)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	var got testDoc
	require.NoError(t, store.Get(ctx, "docs", "a", &got))
	assert.Equal(t, 8, got.Count)
}

func TestMemoryStoreTransactionBodyErrorAborts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "docs", "a", testDoc{Count: 1}))

	sentinel := assert.AnError
	err := store.RunTransaction(ctx, func(tx Tx) error {
		if err := tx.Set("docs", "a", testDoc{Count: 99}); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	var got testDoc
	require.NoError(t, store.Get(ctx, "docs", "a", &got))
	assert.Equal(t, 1, got.Count, "staged writes must not land on abort")
}
