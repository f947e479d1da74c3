// Package mongodb implements the audit store using MongoDB
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-regpack/internal/audit"
)

// Store implements audit.Store using MongoDB
type Store struct {
	client  *mongo.Client
	records *mongo.Collection
}

// Config holds MongoDB connection settings
type Config struct {
	URI        string
	Database   string
	Collection string
}

var _ audit.Store = (*Store)(nil)

// NewStore creates a new MongoDB store
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "outcomes"
	}
	s := &Store{
		client:  client,
		records: client.Database(cfg.Database).Collection(collection),
	}

	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.records.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "recorded_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "recorded_at", Value: -1}}},
		{Keys: bson.D{{Key: "failure_kind", Value: 1}, {Key: "recorded_at", Value: -1}}},
		{Keys: bson.D{{Key: "document_sha256", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating record indexes: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Save(ctx context.Context, record *audit.Record) error {
	_, err := s.records.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", audit.ErrDuplicate, record.ID)
	}
	return err
}

func (s *Store) Get(ctx context.Context, invocationID string) (*audit.Record, error) {
	var record audit.Record
	err := s.records.FindOne(ctx, bson.M{"_id": invocationID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) List(ctx context.Context, filter *audit.Filter) ([]*audit.Record, error) {
	cursor, err := s.records.Find(ctx, query(filter), findOptions(filter))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*audit.Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func query(filter *audit.Filter) bson.M {
	q := bson.M{}
	if filter == nil {
		return q
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if filter.FailureKind != "" {
		q["failure_kind"] = filter.FailureKind
	}
	if filter.Since != nil {
		q["recorded_at"] = bson.M{"$gte": *filter.Since}
	}
	return q
}

func findOptions(filter *audit.Filter) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: -1}, {Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			opts.SetLimit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			opts.SetSkip(int64(filter.Offset))
		}
	}
	return opts
}
