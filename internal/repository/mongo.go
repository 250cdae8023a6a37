package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/guttosm/offline-cache/internal/domain/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoEntry is the document shape of the entries collection.
type mongoEntry struct {
	Key       string `bson:"_id"`
	Data      []byte `bson:"data"`
	Timestamp int64  `bson:"timestamp"`
	Size      int64  `bson:"size"`
	Type      string `bson:"type"`
}

// MongoRepository stores cache entries in a MongoDB collection shared by several gateways.
type MongoRepository struct {
	db *MongoDB
}

// NewMongoRepository creates a repository over an established connection.
func NewMongoRepository(db *MongoDB) *MongoRepository {
	return &MongoRepository{db: db}
}

// Open creates the collection indexes.
func (r *MongoRepository) Open(ctx context.Context) error {
	if err := r.db.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create cache indexes: %w", err)
	}
	return nil
}

// Get returns the entry stored under key.
func (r *MongoRepository) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	var doc mongoEntry
	err := r.db.Entries.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	data := doc.Data
	if data == nil {
		data = []byte{}
	}
	return &model.CacheEntry{
		EntryMeta: model.EntryMeta{
			Key:       doc.Key,
			Timestamp: doc.Timestamp,
			Size:      doc.Size,
			Type:      doc.Type,
		},
		Data: data,
	}, nil
}

// Put upserts an entry.
func (r *MongoRepository) Put(ctx context.Context, entry *model.CacheEntry) error {
	doc := mongoEntry{
		Key:       entry.Key,
		Data:      entry.Data,
		Timestamp: entry.Timestamp,
		Size:      entry.Size,
		Type:      entry.Type,
	}
	_, err := r.db.Entries.ReplaceOne(ctx, bson.M{"_id": entry.Key}, doc, options.Replace().SetUpsert(true))
	return err
}

// Delete removes keys, counting the sizes of the documents that existed.
func (r *MongoRepository) Delete(ctx context.Context, keys ...string) (model.CleanupCount, error) {
	var count model.CleanupCount
	if len(keys) == 0 {
		return count, nil
	}

	filter := bson.M{"_id": bson.M{"$in": keys}}
	metas, err := r.findMeta(ctx, filter, nil)
	if err != nil {
		return count, err
	}
	if len(metas) == 0 {
		return count, nil
	}

	existing := make([]string, 0, len(metas))
	for _, m := range metas {
		existing = append(existing, m.Key)
		count.Bytes += m.Size
	}

	res, err := r.db.Entries.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": existing}})
	if err != nil {
		return model.CleanupCount{}, err
	}
	count.Items = int(res.DeletedCount)
	return count, nil
}

// List returns metadata ordered by ascending timestamp. Payloads are not fetched.
func (r *MongoRepository) List(ctx context.Context, filter ListFilter) ([]model.EntryMeta, error) {
	query := bson.M{}
	if filter.Prefix != "" {
		query["_id"] = bson.M{"$regex": "^" + regexp.QuoteMeta(filter.Prefix)}
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	return r.findMeta(ctx, query, bson.D{{Key: "timestamp", Value: 1}})
}

func (r *MongoRepository) findMeta(ctx context.Context, query bson.M, sort bson.D) ([]model.EntryMeta, error) {
	opts := options.Find().SetProjection(bson.M{"data": 0})
	if sort != nil {
		opts.SetSort(sort)
	}

	cursor, err := r.db.Entries.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mongoEntry
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	metas := make([]model.EntryMeta, 0, len(docs))
	for _, d := range docs {
		metas = append(metas, model.EntryMeta{
			Key:       d.Key,
			Timestamp: d.Timestamp,
			Size:      d.Size,
			Type:      d.Type,
		})
	}
	return metas, nil
}

// Clear removes every document in the collection.
func (r *MongoRepository) Clear(ctx context.Context) error {
	_, err := r.db.Entries.DeleteMany(ctx, bson.M{})
	return err
}

// Ping checks the connection.
func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// Close disconnects the client.
func (r *MongoRepository) Close(ctx context.Context) error {
	return r.db.Close(ctx)
}
