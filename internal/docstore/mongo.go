package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a MongoDB database. Documents are keyed by
// _id; Watch combines an initial find with a change stream that triggers a
// re-query, so subscribers always receive full result snapshots like the
// hosted backend delivers them. RunTransaction relies on the driver's
// session transactions, whose transient-error retry is the native
// optimistic-concurrency primitive.
type MongoStore struct {
	db  *mongo.Database
	log zerolog.Logger
}

func NewMongoStore(db *mongo.Database, log zerolog.Logger) *MongoStore {
	return &MongoStore{db: db, log: log.With().Str("component", "docstore").Logger()}
}

func (s *MongoStore) Get(ctx context.Context, collection, id string, out any) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, doc any) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, opts)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) UpdateField(ctx context.Context, collection, id, field string, value any) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{field: value}},
	)
	if err != nil {
		return fmt.Errorf("update %s/%s.%s: %w", collection, id, field, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, q Query) ([]Snapshot, error) {
	return s.snapshot(ctx, q)
}

func (s *MongoStore) snapshot(ctx context.Context, q Query) ([]Snapshot, error) {
	col := s.db.Collection(q.Collection)

	if q.DocumentID != "" {
		var raw bson.M
		err := col.FindOne(ctx, bson.M{"_id": q.DocumentID}).Decode(&raw)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("snapshot %s/%s: %w", q.Collection, q.DocumentID, err)
		}
		data, err := rawToJSON(raw)
		if err != nil {
			return nil, err
		}
		return []Snapshot{{ID: q.DocumentID, Data: data}}, nil
	}

	filter := bson.M{}
	for field, value := range q.Filter {
		filter[field] = value
	}
	findOpts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		findOpts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	cursor, err := col.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", q.Collection, err)
	}
	defer cursor.Close(ctx)

	var snaps []Snapshot
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", q.Collection, err)
		}
		id, _ := raw["_id"].(string)
		data, err := rawToJSON(raw)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, Snapshot{ID: id, Data: data})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", q.Collection, err)
	}
	return snaps, nil
}

// rawToJSON converts a decoded BSON document into plain JSON, normalizing
// the BSON-specific types that appear in our documents.
func rawToJSON(raw bson.M) (json.RawMessage, error) {
	data, err := json.Marshal(normalize(raw))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = normalize(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = normalize(val)
		}
		return m
	case bson.A:
		a := make([]any, len(t))
		for i, val := range t {
			a[i] = normalize(val)
		}
		return a
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}

// Watch emits the current result set immediately, then re-queries after
// every change-stream event on the collection. Change-stream failures are
// surfaced as events and the stream is reopened with a short backoff; the
// subscription only ends on Close or context cancellation.
func (s *MongoStore) Watch(ctx context.Context, q Query) (Subscription, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	sub := &mongoSub{
		ch:     make(chan Event, 1),
		cancel: cancel,
	}
	go s.pump(watchCtx, q, sub)
	return sub, nil
}

func (s *MongoStore) pump(ctx context.Context, q Query, sub *mongoSub) {
	defer close(sub.ch)

	emitSnapshot := func() {
		snaps, err := s.snapshot(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sub.push(Event{Err: err})
			return
		}
		sub.push(Event{Docs: snaps})
	}
	emitSnapshot()

	for ctx.Err() == nil {
		stream, err := s.db.Collection(q.Collection).Watch(ctx, mongo.Pipeline{})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sub.push(Event{Err: fmt.Errorf("watch %s: %w", q.Collection, err)})
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		for stream.Next(ctx) {
			emitSnapshot()
		}
		streamErr := stream.Err()
		stream.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		if streamErr != nil {
			sub.push(Event{Err: fmt.Errorf("watch %s: %w", q.Collection, streamErr)})
			s.log.Warn().Err(streamErr).Str("collection", q.Collection).Msg("change stream interrupted, reopening")
		}
	}
}

type mongoSub struct {
	mu     sync.Mutex
	ch     chan Event
	cancel context.CancelFunc
	closed bool
	once   sync.Once
}

func (s *mongoSub) Events() <-chan Event { return s.ch }

func (s *mongoSub) push(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	pushLatest(s.ch, ev)
}

func (s *mongoSub) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
	})
}

// RunTransaction executes fn inside a MongoDB session transaction. The
// driver retries the whole body on transient conflicts; a callback error
// aborts and is returned as-is.
func (s *MongoStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(&mongoTx{store: s, ctx: sc})
	})
	return err
}

type mongoTx struct {
	store *MongoStore
	ctx   mongo.SessionContext
}

func (t *mongoTx) Get(collection, id string, out any) error {
	return t.store.Get(t.ctx, collection, id, out)
}

func (t *mongoTx) Set(collection, id string, doc any) error {
	return t.store.Set(t.ctx, collection, id, doc)
}

func (t *mongoTx) UpdateField(collection, id, field string, value any) error {
	return t.store.UpdateField(t.ctx, collection, id, field, value)
}
