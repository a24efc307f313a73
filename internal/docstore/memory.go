package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const defaultTxRetries = 5

// MemoryStore is a process-local Store used in development and tests. It
// keeps full optimistic-transaction and push-snapshot semantics so consumers
// behave the same against it as against the hosted backend.
type MemoryStore struct {
	mu        sync.Mutex
	cols      map[string]map[string]memDoc
	subs      map[uint64]*memSub
	nextSubID uint64
	txRetries int
}

type memDoc struct {
	data    json.RawMessage
	version uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cols:      make(map[string]map[string]memDoc),
		subs:      make(map[uint64]*memSub),
		txRetries: defaultTxRetries,
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string, out any) error {
	s.mu.Lock()
	doc, ok := s.cols[collection][id]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(doc.data, out); err != nil {
		return fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}
	s.mu.Lock()
	s.putLocked(collection, id, data)
	s.notifyLocked(collection)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) UpdateField(ctx context.Context, collection, id, field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.setFieldLocked(collection, id, field, value)
	if err != nil {
		return err
	}
	s.putLocked(collection, id, data)
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cols[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.cols[collection], id)
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, q Query) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(q), nil
}

// Watch registers a listener and immediately delivers the current state as
// the first event. The subscription is torn down when Close is called or the
// context ends, whichever comes first.
func (s *MemoryStore) Watch(ctx context.Context, q Query) (Subscription, error) {
	sub := &memSub{
		store: s,
		query: q,
		ch:    make(chan Event, 1),
	}
	s.mu.Lock()
	s.nextSubID++
	sub.id = s.nextSubID
	s.subs[sub.id] = sub
	pushLatest(sub.ch, Event{Docs: s.snapshotLocked(q)})
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub, nil
}

// Listeners reports the number of registered subscriptions.
func (s *MemoryStore) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *MemoryStore) putLocked(collection, id string, data json.RawMessage) {
	col, ok := s.cols[collection]
	if !ok {
		col = make(map[string]memDoc)
		s.cols[collection] = col
	}
	prev := col[id]
	col[id] = memDoc{data: data, version: prev.version + 1}
}

// setFieldLocked returns the document with one top-level field replaced.
func (s *MemoryStore) setFieldLocked(collection, id, field string, value any) (json.RawMessage, error) {
	doc, ok := s.cols[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	var m map[string]any
	if err := json.Unmarshal(doc.data, &m); err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode field %s: %w", field, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("encode field %s: %w", field, err)
	}
	m[field] = v
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (s *MemoryStore) notifyLocked(collection string) {
	for _, sub := range s.subs {
		if sub.query.Collection != collection {
			continue
		}
		pushLatest(sub.ch, Event{Docs: s.snapshotLocked(sub.query)})
	}
}

func (s *MemoryStore) snapshotLocked(q Query) []Snapshot {
	col := s.cols[q.Collection]
	if q.DocumentID != "" {
		doc, ok := col[q.DocumentID]
		if !ok {
			return nil
		}
		return []Snapshot{{ID: q.DocumentID, Data: doc.data}}
	}
	snaps := make([]Snapshot, 0, len(col))
	for id, doc := range col {
		if !matches(doc.data, q.Filter) {
			continue
		}
		snaps = append(snaps, Snapshot{ID: id, Data: doc.data})
	}
	sortSnapshots(snaps, q)
	return snaps
}

func matches(data json.RawMessage, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	for field, want := range filter {
		if fmt.Sprint(m[field]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func sortSnapshots(snaps []Snapshot, q Query) {
	field := q.OrderBy
	if field == "" {
		// deterministic fallback
		sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
		return
	}
	key := func(s Snapshot) string {
		var m map[string]any
		if err := json.Unmarshal(s.Data, &m); err != nil {
			return ""
		}
		return fmt.Sprint(m[field])
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		a, b := key(snaps[i]), key(snaps[j])
		if q.Descending {
			return strings.Compare(a, b) > 0
		}
		return strings.Compare(a, b) < 0
	})
}

type memSub struct {
	id    uint64
	store *MemoryStore
	query Query
	ch    chan Event
	once  sync.Once
}

func (s *memSub) Events() <-chan Event { return s.ch }

// Close deregisters the listener and then closes the channel. Deregistration
// happens under the store lock, so no event can be pushed afterwards; a
// snapshot already sitting in the slot stays drainable.
func (s *memSub) Close() {
	s.once.Do(func() {
		s.store.mu.Lock()
		delete(s.store.subs, s.id)
		s.store.mu.Unlock()
		close(s.ch)
	})
}

// --- transactions ---

type memTx struct {
	store  *MemoryStore
	reads  map[string]uint64
	writes []memWrite
}

type memWrite struct {
	collection string
	id         string
	field      string // empty = whole-document set
	value      any
}

func txKey(collection, id string) string {
	return collection + "/" + id
}

func (t *memTx) Get(collection, id string, out any) error {
	t.store.mu.Lock()
	doc, ok := t.store.cols[collection][id]
	t.store.mu.Unlock()
	if !ok {
		// Version zero is still recorded: a document created by a
		// concurrent writer must fail this transaction's commit.
		t.reads[txKey(collection, id)] = 0
		return ErrNotFound
	}
	t.reads[txKey(collection, id)] = doc.version
	if err := json.Unmarshal(doc.data, out); err != nil {
		return fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (t *memTx) Set(collection, id string, doc any) error {
	t.writes = append(t.writes, memWrite{collection: collection, id: id, value: doc})
	return nil
}

func (t *memTx) UpdateField(collection, id, field string, value any) error {
	if field == "" {
		return fmt.Errorf("empty field name")
	}
	t.writes = append(t.writes, memWrite{collection: collection, id: id, field: field, value: value})
	return nil
}

// RunTransaction executes fn with a fresh Tx and commits its staged writes
// only if every document read by fn is still at the version that was read.
// On conflict the whole body is re-run, up to the retry budget.
func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; attempt < s.txRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &memTx{store: s, reads: make(map[string]uint64)}
		if err := fn(tx); err != nil {
			return err
		}
		ok, err := s.commit(tx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrConflict
}

func (s *MemoryStore) commit(tx *memTx) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, readVersion := range tx.reads {
		collection, id, _ := strings.Cut(key, "/")
		current := uint64(0)
		if doc, ok := s.cols[collection][id]; ok {
			current = doc.version
		}
		if current != readVersion {
			return false, nil
		}
	}

	touched := make(map[string]struct{})
	for _, w := range tx.writes {
		var data json.RawMessage
		var err error
		if w.field == "" {
			data, err = json.Marshal(w.value)
			if err != nil {
				err = fmt.Errorf("encode document %s/%s: %w", w.collection, w.id, err)
			}
		} else {
			data, err = s.setFieldLocked(w.collection, w.id, w.field, w.value)
		}
		if err != nil {
			return false, err
		}
		s.putLocked(w.collection, w.id, data)
		touched[w.collection] = struct{}{}
	}
	for collection := range touched {
		s.notifyLocked(collection)
	}
	return true, nil
}
