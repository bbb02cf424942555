package store

import (
	"errors"
	"time"

	"github.com/conductor-telemetry/conductor/pkg/models"
	"github.com/conductor-telemetry/conductor/pkg/schema"
)

var (
	ErrProducerNotFound    = errors.New("producer not found")
	ErrProducerExists      = errors.New("producer already registered")
	ErrUnsupportedDatabase = errors.New("unsupported database type")
)

// Store defines the interface for producer metadata and emitted data.
// QuestDB, SQLite and the in-memory backend all implement this interface.
type Store interface {
	// CreateProducer persists the producer row and creates its data
	// table. The producer row must not appear unless the data table was
	// created.
	CreateProducer(p *models.Producer, s schema.Schema) error
	GetProducer(uuid string) (*models.Producer, error)
	ListProducers() ([]*models.Producer, error)

	// InsertEmit appends one row to the producer's data table. columns
	// and values are parallel slices of already-converted values; ts is
	// the designated timestamp.
	InsertEmit(uuid string, columns []string, values []interface{}, ts time.Time) error

	// CountRows reports the number of rows in a producer's data table,
	// used by the metrics collector.
	CountRows(uuid string) (int64, error)

	HealthCheck() error
	Close() error
}

// Config holds database configuration.
type Config struct {
	Type string // "quest", "sqlite" or "memory"
	DSN  string // connection string (QuestDB PG wire endpoint)
	Path string // database file (SQLite)

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewStore creates a store based on configuration.
func NewStore(config Config) (Store, error) {
	switch config.Type {
	case "quest", "questdb":
		return NewQuestStore(config)
	case "sqlite", "":
		path := config.Path
		if path == "" {
			path = config.DSN
		}
		if path == "" {
			path = "conductor.db"
		}
		return NewSQLiteStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, ErrUnsupportedDatabase
	}
}
