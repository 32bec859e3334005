// Package mongodb stores console documents directly in MongoDB, one Mongo
// collection per document collection.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"dormdesk/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo field names for the metadata attributes, which cannot start with '$'.
const (
	fieldID        = "_id"
	fieldCreatedAt = "_createdAt"
	fieldUpdatedAt = "_updatedAt"
)

// Connect dials uri and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

type Store struct {
	db        *mongo.Database
	publicURL string
	now       func() time.Time
}

// New stores documents in db. Uploaded files go to GridFS and are previewed
// through publicURL.
func New(db *mongo.Database, publicURL string) *Store {
	return &Store{db: db, publicURL: publicURL, now: time.Now}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *Store) List(ctx context.Context, collection string, q store.Query) (*store.DocumentList, error) {
	coll := s.db.Collection(collection)
	filter := buildFilter(q.Filters)

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", collection, err)
	}

	opts := options.Find()
	if len(q.Orders) > 0 {
		sort := bson.D{}
		for _, o := range q.Orders {
			dir := 1
			if o.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: fieldName(o.Attribute), Value: dir})
		}
		opts.SetSort(sort)
	} else {
		opts.SetSort(bson.D{{Key: fieldCreatedAt, Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}

	docs := make([]store.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, fromBSON(m))
	}
	return &store.DocumentList{Total: int(total), Documents: docs}, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var m bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{fieldID: id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return fromBSON(m), nil
}

func (s *Store) Create(ctx context.Context, collection, id string, data store.Document) (store.Document, error) {
	if id == "" {
		id = store.UniqueID()
	}
	now := s.now().UTC()

	m := toBSON(store.Payload(data))
	m[fieldID] = id
	m[fieldCreatedAt] = primitive.NewDateTimeFromTime(now)
	m[fieldUpdatedAt] = primitive.NewDateTimeFromTime(now)

	if _, err := s.db.Collection(collection).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrConflict)
		}
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}
	return fromBSON(m), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, data store.Document) (store.Document, error) {
	set := toBSON(store.Payload(data))
	set[fieldUpdatedAt] = primitive.NewDateTimeFromTime(s.now().UTC())

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m bson.M
	err := s.db.Collection(collection).
		FindOneAndUpdate(ctx, bson.M{fieldID: id}, bson.M{"$set": set}, opts).
		Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return fromBSON(m), nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{fieldID: id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

func fieldName(attr string) string {
	switch attr {
	case store.FieldID:
		return fieldID
	case store.FieldCreatedAt:
		return fieldCreatedAt
	case store.FieldUpdatedAt:
		return fieldUpdatedAt
	}
	return attr
}

// buildFilter translates store filters into a Mongo query document.
func buildFilter(filters []store.Filter) bson.M {
	if len(filters) == 0 {
		return bson.M{}
	}

	clauses := make(bson.A, 0, len(filters))
	for _, f := range filters {
		clauses = append(clauses, bson.M{fieldName(f.Attribute): filterExpr(f)})
	}
	if len(clauses) == 1 {
		return clauses[0].(bson.M)
	}
	return bson.M{"$and": clauses}
}

func filterExpr(f store.Filter) any {
	values := make(bson.A, 0, len(f.Values))
	for _, v := range f.Values {
		values = append(values, toBSONValue(v))
	}
	first := func() any {
		if len(values) == 0 {
			return nil
		}
		return values[0]
	}

	switch f.Op {
	case store.OpEqual, store.OpContains:
		if len(values) == 1 {
			return bson.M{"$eq": values[0]}
		}
		return bson.M{"$in": values}
	case store.OpNotEqual:
		return bson.M{"$ne": first()}
	case store.OpLess:
		return bson.M{"$lt": first()}
	case store.OpLessEqual:
		return bson.M{"$lte": first()}
	case store.OpGreater:
		return bson.M{"$gt": first()}
	case store.OpGreaterEqual:
		return bson.M{"$gte": first()}
	case store.OpSearch:
		term := fmt.Sprint(first())
		return bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
	case store.OpIsNull:
		return bson.M{"$eq": nil}
	case store.OpIsNotNull:
		return bson.M{"$ne": nil}
	}
	return bson.M{"$exists": true}
}

// toBSON converts a JSON-shaped document, storing timestamp strings as native dates.
func toBSON(doc store.Document) bson.M {
	out := bson.M{}
	for k, v := range doc {
		out[k] = toBSONValue(v)
	}
	return out
}

func toBSONValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return primitive.NewDateTimeFromTime(t)
	case string:
		if ts, ok := parseTimestamp(t); ok {
			return primitive.NewDateTimeFromTime(ts)
		}
		return t
	case []any:
		arr := make(bson.A, 0, len(t))
		for _, el := range t {
			arr = append(arr, toBSONValue(el))
		}
		return arr
	case map[string]any:
		return toBSON(t)
	}
	return v
}

// fromBSON converts a stored Mongo document back into the JSON shape callers expect.
func fromBSON(m bson.M) store.Document {
	doc := store.Document{}
	for k, v := range m {
		switch k {
		case fieldID:
			doc[store.FieldID] = fmt.Sprint(v)
		case fieldCreatedAt:
			doc[store.FieldCreatedAt] = fromBSONValue(v)
		case fieldUpdatedAt:
			doc[store.FieldUpdatedAt] = fromBSONValue(v)
		default:
			doc[k] = fromBSONValue(v)
		}
	}
	return doc
}

func fromBSONValue(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return store.FormatTime(t.Time())
	case primitive.A:
		out := make([]any, 0, len(t))
		for _, el := range t {
			out = append(out, fromBSONValue(el))
		}
		return out
	case bson.M:
		return map[string]any(fromBSON(t))
	case bson.D:
		return map[string]any(fromBSON(t.Map()))
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.ObjectID:
		return t.Hex()
	}
	return v
}

func parseTimestamp(s string) (time.Time, bool) {
	if len(s) < 20 || s[4] != '-' || s[10] != 'T' {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, err == nil
}
