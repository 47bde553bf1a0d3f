package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/types"
)

// vectorDocument is the stored shape of a Record.
type vectorDocument struct {
	ID        string         `bson:"_id"`
	Namespace string         `bson:"namespace"`
	Vector    []float32      `bson:"vector"`
	Text      string         `bson:"text"`
	Metadata  map[string]any `bson:"metadata"`
	CreatedAt time.Time      `bson:"created_at"`
}

// MongoStore keeps vectors for all namespaces in one MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoStore connects to MongoDB and ensures the namespace index exists.
func NewMongoStore(cfg config.StoreConfig, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "namespace", Value: 1}, {Key: "metadata.source", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("create index: %w", err)}
	}

	return &MongoStore{
		client:     client,
		collection: collection,
		logger:     logger.With("component", "mongo_store"),
	}, nil
}

// Name returns the backend identifier.
func (s *MongoStore) Name() string { return "mongodb" }

// Upsert writes records with one unordered bulk write.
func (s *MongoStore) Upsert(ctx context.Context, records []Record, namespace string) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, len(records))
	for i, rec := range records {
		doc := vectorDocument{
			ID:        rec.ID,
			Namespace: namespace,
			Vector:    rec.Vector,
			Text:      rec.Text,
			Metadata:  rec.Metadata,
			CreatedAt: now,
		}
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": rec.ID}).
			SetReplacement(doc).
			SetUpsert(true)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("bulk write: %w", err)}
	}

	s.mu.Lock()
	s.count += len(records)
	total := s.count
	s.mu.Unlock()

	s.logger.Debug("records stored in mongodb", "count", len(records), "namespace", namespace, "total", total)
	return nil
}

// Stats counts the vectors and distinct sources in namespace.
func (s *MongoStore) Stats(ctx context.Context, namespace string) (*Stats, error) {
	filter := bson.M{"namespace": namespace}

	count, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("count: %w", err)}
	}

	sources, err := s.collection.Distinct(ctx, "metadata.source", filter)
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("distinct sources: %w", err)}
	}

	stats := &Stats{
		Namespace:   namespace,
		VectorCount: count,
		Sources:     int64(len(sources)),
	}

	var sample vectorDocument
	err = s.collection.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"vector": 1})).Decode(&sample)
	switch {
	case err == nil:
		stats.Dimension = len(sample.Vector)
	case errors.Is(err, mongo.ErrNoDocuments):
	default:
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("sample vector: %w", err)}
	}

	return stats, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	s.logger.Info("mongodb store closing", "total_records", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
