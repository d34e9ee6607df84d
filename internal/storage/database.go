package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/rallybrief/internal/types"
)

// MongoStore writes briefing records to a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(uri, database, collection string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_store"),
	}, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

func (s *MongoStore) Record(ctx context.Context, b *types.Briefing) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, briefingDocument(b)); err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("insert: %w", err)}
	}

	s.logger.Debug("briefing stored in mongodb", "id", b.ID)
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// briefingDocument converts a briefing to BSON. The analysis is stored as a
// nested document when it parses as extended JSON, as a string otherwise.
func briefingDocument(b *types.Briefing) bson.D {
	doc := bson.D{
		{Key: "_id", Value: b.ID},
		{Key: "date", Value: b.Date},
		{Key: "article_url", Value: b.ArticleURL},
		{Key: "news_lines", Value: b.NewsLines},
		{Key: "post_url", Value: b.PostURL},
		{Key: "pdf_path", Value: b.PDFPath},
		{Key: "pdf_hash", Value: b.PDFHash},
		{Key: "forwarded", Value: b.Forwarded},
		{Key: "created_at", Value: b.CreatedAt},
	}

	if len(b.Analysis) > 0 {
		var analysis bson.M
		if err := bson.UnmarshalExtJSON(b.Analysis, false, &analysis); err == nil {
			doc = append(doc, bson.E{Key: "analysis", Value: analysis})
		} else {
			doc = append(doc, bson.E{Key: "analysis_raw", Value: string(b.Analysis)})
		}
	}
	return doc
}

// --- Multi-Store Fan-Out ---

// MultiStore writes records to multiple backends.
type MultiStore struct {
	backends []RecordStore
	logger   *slog.Logger
}

// NewMultiStore creates a store that fans out to multiple backends.
func NewMultiStore(backends []RecordStore, logger *slog.Logger) *MultiStore {
	return &MultiStore{
		backends: backends,
		logger:   logger.With("component", "multi_store"),
	}
}

func (s *MultiStore) Name() string { return "multi" }

func (s *MultiStore) Record(ctx context.Context, b *types.Briefing) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Record(ctx, b); err != nil {
			s.logger.Error("backend record failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *MultiStore) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
