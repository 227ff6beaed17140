package datastore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/secureboat/recipe-api/pkg/metrics"
)

// comparator → Mongo operator for the single-predicate filters.
var mongoOps = map[string]string{
	"=":  "$eq",
	"!=": "$ne",
	"<":  "$lt",
	"<=": "$lte",
	">":  "$gt",
	">=": "$gte",
}

// MongoStore implements Store on MongoDB. Each logical collection maps to a
// Mongo collection of the same name. Identifiers are int64 values allocated
// from a shared "counters" collection so they stay monotonic and are never
// reused after a delete.
type MongoStore struct {
	db       *mongo.Database
	counters *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, counters: db.Collection("counters")}
}

// nextID atomically increments and returns the id counter for a collection.
func (s *MongoStore) nextID(ctx context.Context, collection string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var out struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": collection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&out)
	if err != nil {
		return 0, err
	}
	return out.Seq, nil
}

func (s *MongoStore) Save(ctx context.Context, collection string, doc Document) (Document, error) {
	id, err := s.nextID(ctx, collection)
	if err != nil {
		metrics.DatastoreOps.WithLabelValues(collection, "save", "error").Inc()
		return nil, unavailable("allocate id", err)
	}
	stored := copyDoc(doc)
	delete(stored, "id")
	stored["_id"] = id
	if _, err := s.db.Collection(collection).InsertOne(ctx, stored); err != nil {
		metrics.DatastoreOps.WithLabelValues(collection, "save", "error").Inc()
		return nil, unavailable("insert", err)
	}
	metrics.DatastoreOps.WithLabelValues(collection, "save", "ok").Inc()
	out := copyDoc(doc)
	out["id"] = id
	return out, nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (Document, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": n}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		metrics.DatastoreOps.WithLabelValues(collection, "get", "miss").Inc()
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		metrics.DatastoreOps.WithLabelValues(collection, "get", "error").Inc()
		return nil, unavailable("find", err)
	}
	metrics.DatastoreOps.WithLabelValues(collection, "get", "ok").Inc()
	return fromMongo(raw), nil
}

func (s *MongoStore) List(ctx context.Context, collection string) ([]Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		metrics.DatastoreOps.WithLabelValues(collection, "list", "error").Inc()
		return nil, unavailable("find", err)
	}
	docs, err := drain(ctx, cur)
	if err != nil {
		metrics.DatastoreOps.WithLabelValues(collection, "list", "error").Inc()
		return nil, err
	}
	metrics.DatastoreOps.WithLabelValues(collection, "list", "ok").Inc()
	return docs, nil
}

func (s *MongoStore) QueryByAttribute(ctx context.Context, collection, field, comparator string, value interface{}) ([]Document, error) {
	filter, err := predicate(field, comparator, value)
	if err != nil {
		return nil, err
	}
	cur, err := s.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		metrics.DatastoreOps.WithLabelValues(collection, "query", "error").Inc()
		return nil, unavailable("find", err)
	}
	docs, err := drain(ctx, cur)
	if err != nil {
		metrics.DatastoreOps.WithLabelValues(collection, "query", "error").Inc()
		return nil, err
	}
	metrics.DatastoreOps.WithLabelValues(collection, "query", "ok").Inc()
	return docs, nil
}

func (s *MongoStore) QueryPage(ctx context.Context, collection, field, comparator string, value interface{}, pageSize int, cursor string) ([]Document, PageInfo, error) {
	filter, err := predicate(field, comparator, value)
	if err != nil {
		return nil, PageInfo{}, err
	}
	if cursor != "" {
		lastID, err := decodeCursor(cursor)
		if err != nil {
			return nil, PageInfo{}, err
		}
		filter["_id"] = bson.M{"$gt": lastID}
	}
	// Fetch one extra row to learn whether the backend has more results.
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(pageSize) + 1)
	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		metrics.DatastoreOps.WithLabelValues(collection, "query_page", "error").Inc()
		return nil, PageInfo{}, unavailable("find", err)
	}
	docs, err := drain(ctx, cur)
	if err != nil {
		metrics.DatastoreOps.WithLabelValues(collection, "query_page", "error").Inc()
		return nil, PageInfo{}, err
	}
	backendMore := false
	if len(docs) > pageSize {
		backendMore = true
		docs = docs[:pageSize]
	}
	metrics.DatastoreOps.WithLabelValues(collection, "query_page", "ok").Inc()
	return docs, finishPage(docs, backendMore, pageSize), nil
}

func (s *MongoStore) Replace(ctx context.Context, collection, id string, doc Document) (Document, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	stored := copyDoc(doc)
	delete(stored, "id")
	res, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": n}, stored)
	if err != nil {
		metrics.DatastoreOps.WithLabelValues(collection, "replace", "error").Inc()
		return nil, unavailable("replace", err)
	}
	if res.MatchedCount == 0 {
		metrics.DatastoreOps.WithLabelValues(collection, "replace", "miss").Inc()
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	metrics.DatastoreOps.WithLabelValues(collection, "replace", "ok").Inc()
	out := copyDoc(doc)
	out["id"] = n
	return out, nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	n, ok := parseID(id)
	if !ok {
		return fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": n})
	if err != nil {
		metrics.DatastoreOps.WithLabelValues(collection, "delete", "error").Inc()
		return unavailable("delete", err)
	}
	if res.DeletedCount == 0 {
		metrics.DatastoreOps.WithLabelValues(collection, "delete", "miss").Inc()
		return fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	metrics.DatastoreOps.WithLabelValues(collection, "delete", "ok").Inc()
	return nil
}

func predicate(field, comparator string, value interface{}) (bson.M, error) {
	op, ok := mongoOps[comparator]
	if !ok {
		return nil, fmt.Errorf("unsupported comparator %q", comparator)
	}
	return bson.M{field: bson.M{op: value}}, nil
}

// fromMongo moves the native _id onto the public "id" key and converts
// driver types (primitive.D, primitive.A, primitive.DateTime) back into the
// plain maps, slices and time values the rest of the system works with.
func fromMongo(raw bson.M) Document {
	doc := Document{}
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		doc[k] = normalize(v)
	}
	switch id := raw["_id"].(type) {
	case int64:
		doc["id"] = id
	case int32:
		doc["id"] = int64(id)
	}
	return doc
}

func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.M:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = normalize(e)
		}
		return out
	case primitive.A:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case primitive.DateTime:
		return val.Time().UTC()
	case int32:
		return int64(val)
	default:
		return v
	}
}

func drain(ctx context.Context, cur *mongo.Cursor) ([]Document, error) {
	defer cur.Close(ctx)
	out := []Document{}
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, unavailable("decode", err)
		}
		out = append(out, fromMongo(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, unavailable("cursor", err)
	}
	return out, nil
}
