package mongodb

import (
	"context"
	"fmt"
	"time"

	"guidedesk/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// documentStore serves live queries from change streams, which need a replica
// set or sharded cluster.
type documentStore struct {
	db *mongo.Database
}

func NewDocumentStore(db *mongo.Database) interfaces.DocumentStore {
	return &documentStore{db: db}
}

func (s *documentStore) Name() string {
	return "mongodb"
}

func (s *documentStore) Listen(ctx context.Context, query interfaces.Query, onSnapshot interfaces.SnapshotFunc, onError interfaces.ErrorFunc) (interfaces.Listener, error) {
	collection := s.db.Collection(query.Collection)

	ctx, cancel := context.WithCancel(ctx)
	stream, err := collection.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to watch %s: %w", query.Collection, err)
	}

	go func() {
		defer stream.Close(context.Background())

		if !s.deliver(ctx, collection, query, onSnapshot, onError) {
			return
		}

		// Any change can move a document in or out of the filter, so each event
		// re-evaluates the whole query.
		for stream.Next(ctx) {
			if !s.deliver(ctx, collection, query, onSnapshot, onError) {
				return
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil && onError != nil {
			onError(fmt.Errorf("change stream on %s failed: %w", query.Collection, err))
		}
	}()

	return &listener{cancel: cancel}, nil
}

func (s *documentStore) deliver(ctx context.Context, collection *mongo.Collection, query interfaces.Query, onSnapshot interfaces.SnapshotFunc, onError interfaces.ErrorFunc) bool {
	docs, err := s.find(ctx, collection, query)
	if err != nil {
		if ctx.Err() == nil && onError != nil {
			onError(err)
		}
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	onSnapshot(docs)
	return true
}

func (s *documentStore) find(ctx context.Context, collection *mongo.Collection, query interfaces.Query) ([]interfaces.Document, error) {
	order := 1
	if query.Descending {
		order = -1
	}

	cursor, err := collection.Find(ctx, queryFilter(query), options.Find().SetSort(bson.D{{Key: query.OrderBy, Value: order}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", query.Collection, err)
	}
	defer cursor.Close(ctx)

	docs := []interfaces.Document{}
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode %s document: %w", query.Collection, err)
		}
		docs = append(docs, toDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error on %s: %w", query.Collection, err)
	}

	return docs, nil
}

func (s *documentStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}, pre *interfaces.Precondition) error {
	coll := s.db.Collection(collection)

	filter := bson.M{"_id": idFilter(id)}
	if pre != nil {
		for _, exp := range pre.Fields {
			filter[exp.Field] = bson.M{"$in": exp.In}
		}
	}

	result, err := coll.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	if pre == nil {
		return fmt.Errorf("%s/%s: %w", collection, id, interfaces.ErrNotFound)
	}

	count, err := coll.CountDocuments(ctx, bson.M{"_id": idFilter(id)})
	if err != nil {
		return fmt.Errorf("failed to check %s/%s: %w", collection, id, err)
	}
	if count == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, interfaces.ErrNotFound)
	}
	return fmt.Errorf("%s/%s: %w", collection, id, interfaces.ErrConflict)
}

func (s *documentStore) Close() error {
	return nil
}

type listener struct {
	cancel context.CancelFunc
}

func (l *listener) Stop() {
	l.cancel()
}

func queryFilter(query interfaces.Query) bson.M {
	filter := bson.M{query.Field: bson.M{"$in": query.In}}
	if len(query.In) == 1 {
		filter = bson.M{query.Field: query.In[0]}
	}
	if query.OrderBy != "" {
		filter[query.OrderBy] = bson.M{"$exists": true}
	}
	return filter
}

// idFilter matches documents keyed either by the raw string or by the
// ObjectID it encodes.
func idFilter(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"$in": bson.A{id, oid}}
	}
	return id
}

func toDocument(raw bson.M) interfaces.Document {
	var id string
	switch v := raw["_id"].(type) {
	case primitive.ObjectID:
		id = v.Hex()
	case string:
		id = v
	default:
		id = fmt.Sprint(v)
	}
	delete(raw, "_id")

	return interfaces.Document{ID: id, Data: normalizeMap(raw)}
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC()
	case primitive.ObjectID:
		return val.Hex()
	case int32:
		return int64(val)
	case primitive.M:
		return normalizeMap(val)
	case map[string]interface{}:
		return normalizeMap(val)
	case primitive.D:
		m := make(map[string]interface{}, len(val))
		for _, e := range val {
			m[e.Key] = e.Value
		}
		return normalizeMap(m)
	case primitive.A:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalizeValue(e)
		}
		return out
	}
	return v
}
