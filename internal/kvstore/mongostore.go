package kvstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the remote document-store backend: one collection, one
// document per key, upserted by id. This is the strong-consistency-per-key
// backend the design notes call for when the document store is available.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

type mongoDoc struct {
	ID    string `bson:"_id"`
	Value bson.M `bson:"value"`
}

// NewMongoStore connects to uri and binds to database/collection. The
// connection is verified with a Ping under timeout.
func NewMongoStore(ctx context.Context, uri, database, collection string, timeout time.Duration) (*MongoStore, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("kvstore: mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("kvstore: mongo ping: %w", err)
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		timeout:    timeout,
	}, nil
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *MongoStore) Get(ctx context.Context, key string, out any) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc mongoDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kvstore: mongo get %q: %w", key, err)
	}
	raw, err := bson.MarshalExtJSON(doc.Value, false, false)
	if err != nil {
		return false, fmt.Errorf("kvstore: mongo decode %q: %w", key, err)
	}
	if err := bson.UnmarshalExtJSON(raw, false, out); err != nil {
		return false, fmt.Errorf("kvstore: mongo unmarshal %q: %w", key, err)
	}
	return true, nil
}

func (s *MongoStore) Set(ctx context.Context, key string, value any) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	bsonValue, err := toBSONM(value)
	if err != nil {
		return fmt.Errorf("kvstore: mongo encode %q: %w", key, err)
	}
	opts := options.Replace().SetUpsert(true)
	_, err = s.collection.ReplaceOne(ctx, bson.M{"_id": key}, mongoDoc{ID: key, Value: bsonValue}, opts)
	if err != nil {
		return fmt.Errorf("kvstore: mongo set %q: %w", key, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("kvstore: mongo delete %q: %w", key, err)
	}
	return nil
}

func (s *MongoStore) FindOne(ctx context.Context, prefix string, match func(map[string]any) bool) (map[string]any, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: mongo find %q: %w", prefix, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc mongoDoc
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		value := map[string]any(doc.Value)
		if match == nil || match(value) {
			return value, true, nil
		}
	}
	return nil, false, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toBSONM(value any) (bson.M, error) {
	raw, err := bson.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
