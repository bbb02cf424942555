package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/conductor-telemetry/conductor/pkg/models"
	"github.com/conductor-telemetry/conductor/pkg/schema"
)

// QuestStore backs conductor with QuestDB, spoken to over the PostgreSQL
// wire protocol. Each producer gets its own table with ts as the
// designated timestamp, which QuestDB partitions and indexes on.
type QuestStore struct {
	db *sql.DB
}

// NewQuestStore connects to QuestDB's PG wire endpoint (port 8812 by
// default). An empty DSN falls back to QuestDB's stock credentials.
func NewQuestStore(config Config) (*QuestStore, error) {
	dsn := config.DSN
	if dsn == "" {
		dsn = "host=localhost port=8812 user=admin password=quest dbname=qdb sslmode=disable"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open questdb connection: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	s := &QuestStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *QuestStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS producers (name string, uuid string, schema string);`)
	return err
}

// CreateProducer creates the data table first and only then inserts the
// producer row, so a producer is never listed without its table. QuestDB
// has no multi-statement transactions over the PG wire, so ordering is
// the guarantee here.
func (s *QuestStore) CreateProducer(p *models.Producer, sch schema.Schema) error {
	existing, err := s.GetProducer(p.UUID)
	if err != nil && err != ErrProducerNotFound {
		return err
	}
	if existing != nil {
		return ErrProducerExists
	}

	if _, err := s.db.Exec(questCreateTableSQL(p.UUID, sch)); err != nil {
		return fmt.Errorf("failed to create data table: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO producers VALUES($1, $2, $3);`,
		p.Name, p.UUID, p.Schema); err != nil {
		return fmt.Errorf("failed to insert producer: %w", err)
	}
	return nil
}

func (s *QuestStore) GetProducer(uuid string) (*models.Producer, error) {
	rows, err := s.db.Query(`SELECT name, uuid, schema FROM producers WHERE uuid = $1;`, uuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*models.Producer
	for rows.Next() {
		var p models.Producer
		if err := rows.Scan(&p.Name, &p.UUID, &p.Schema); err != nil {
			return nil, err
		}
		found = append(found, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrProducerNotFound
	}
	if len(found) > 1 {
		// QuestDB has no unique constraints; registration is the only
		// writer, so this indicates corruption.
		return nil, fmt.Errorf("multiple producer rows for uuid %s", uuid)
	}
	return found[0], nil
}

func (s *QuestStore) ListProducers() ([]*models.Producer, error) {
	rows, err := s.db.Query(`SELECT name, uuid, schema FROM producers;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Producer
	for rows.Next() {
		var p models.Producer
		if err := rows.Scan(&p.Name, &p.UUID, &p.Schema); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *QuestStore) InsertEmit(uuid string, columns []string, values []interface{}, ts time.Time) error {
	args := make([]interface{}, 0, len(values)+1)
	args = append(args, ts.UTC())
	args = append(args, values...)

	_, err := s.db.Exec(insertSQL(uuid, columns, true), args...)
	if err != nil {
		return fmt.Errorf("failed to insert emit for %s: %w", uuid, err)
	}
	return nil
}

func (s *QuestStore) CountRows(uuid string) (int64, error) {
	if _, err := s.GetProducer(uuid); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q;", uuid)).Scan(&n)
	return n, err
}

func (s *QuestStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *QuestStore) Close() error {
	return s.db.Close()
}
