package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/conductor-telemetry/conductor/pkg/models"
	"github.com/conductor-telemetry/conductor/pkg/schema"
)

// SQLiteStore backs conductor with an embedded SQLite database. It is
// meant for single-node and development deployments where running
// QuestDB is overkill.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// WAL plus a generous busy timeout keeps concurrent emits from
	// tripping over SQLITE_BUSY.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to avoid lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS producers (
		uuid TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		schema TEXT NOT NULL
	);`)
	return err
}

// CreateProducer inserts the producer row and creates its data table in
// one transaction, so a producer never exists without its table.
func (s *SQLiteStore) CreateProducer(p *models.Producer, sch schema.Schema) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRow(`SELECT uuid FROM producers WHERE uuid = ?`, p.UUID).Scan(&existing)
	if err == nil {
		return ErrProducerExists
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing producer: %w", err)
	}

	if _, err := tx.Exec(sqliteCreateTableSQL(p.UUID, sch)); err != nil {
		return fmt.Errorf("failed to create data table: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO producers (uuid, name, schema) VALUES (?, ?, ?)`,
		p.UUID, p.Name, p.Schema); err != nil {
		return fmt.Errorf("failed to insert producer: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetProducer(uuid string) (*models.Producer, error) {
	var p models.Producer
	err := s.db.QueryRow(`SELECT uuid, name, schema FROM producers WHERE uuid = ?`, uuid).
		Scan(&p.UUID, &p.Name, &p.Schema)
	if err == sql.ErrNoRows {
		return nil, ErrProducerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) ListProducers() ([]*models.Producer, error) {
	rows, err := s.db.Query(`SELECT uuid, name, schema FROM producers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Producer
	for rows.Next() {
		var p models.Producer
		if err := rows.Scan(&p.UUID, &p.Name, &p.Schema); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertEmit(uuid string, columns []string, values []interface{}, ts time.Time) error {
	args := make([]interface{}, 0, len(values)+1)
	args = append(args, ts.UTC())
	args = append(args, values...)

	_, err := s.db.Exec(insertSQL(uuid, columns, false), args...)
	if err != nil {
		return fmt.Errorf("failed to insert emit for %s: %w", uuid, err)
	}
	return nil
}

func (s *SQLiteStore) CountRows(uuid string) (int64, error) {
	if _, err := s.GetProducer(uuid); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", uuid)).Scan(&n)
	return n, err
}

func (s *SQLiteStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
