package storage

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/rallybrief/internal/config"
	"github.com/IshaanNene/rallybrief/internal/types"
)

// RecordStore is the interface for briefing record backends.
type RecordStore interface {
	// Record persists one briefing.
	Record(ctx context.Context, b *types.Briefing) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// NewRecordStore builds the configured record backends. MongoDB is used when
// a URI is set, the JSONL file when a path is set, both when both are set.
func NewRecordStore(cfg *config.StorageConfig, logger *slog.Logger) (RecordStore, error) {
	var backends []RecordStore

	if cfg.MongoURI != "" {
		m, err := NewMongoStore(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
		if err != nil {
			return nil, &types.StorageError{Backend: "mongodb", Err: err}
		}
		backends = append(backends, m)
	}
	if cfg.RecordsPath != "" {
		j, err := NewJSONLStore(cfg.RecordsPath, logger)
		if err != nil {
			closeAll(backends)
			return nil, &types.StorageError{Backend: "jsonl", Err: err}
		}
		backends = append(backends, j)
	}

	switch len(backends) {
	case 0:
		return NopStore{}, nil
	case 1:
		return backends[0], nil
	default:
		return NewMultiStore(backends, logger), nil
	}
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Record(context.Context, *types.Briefing) error { return nil }
func (NopStore) Close() error                                  { return nil }
func (NopStore) Name() string                                  { return "none" }

func closeAll(backends []RecordStore) {
	for _, b := range backends {
		_ = b.Close()
	}
}
