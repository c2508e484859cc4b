package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/bpmon/internal/monitor"
)

// Store implements monitor.Store on PostgreSQL via the pgx stdlib driver.
// Same full-supersede Save semantics as the sqlite backend.

type Store struct {
	db *sql.DB
}

// New opens a connection pool for dsn and ensures the schema.
func New(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("empty postgres dsn")
	}
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{db: d}
	if err := s.ensureSchema(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS monitors(
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		interval_seconds INTEGER NOT NULL,
		last_status TEXT NOT NULL DEFAULT '',
		last_checked TIMESTAMPTZ NULL,
		recent_instances JSONB NOT NULL DEFAULT '[]'
	);`)
	return err
}

func (s *Store) Load() ([]monitor.Record, error) {
	rows, err := s.db.Query(`SELECT id, kind, name, interval_seconds, last_status, last_checked, recent_instances
		FROM monitors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []monitor.Record
	for rows.Next() {
		var rec monitor.Record
		var kind string
		var lastChecked sql.NullTime
		var instances []byte
		if err := rows.Scan(&rec.ID, &kind, &rec.Name, &rec.IntervalSeconds, &rec.LastStatus, &lastChecked, &instances); err != nil {
			return nil, err
		}
		rec.Kind = monitor.Kind(kind)
		if lastChecked.Valid {
			t := lastChecked.Time.UTC()
			rec.LastChecked = &t
		}
		if len(instances) > 0 {
			if err := json.Unmarshal(instances, &rec.RecentInstances); err != nil {
				return nil, err
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Save(records []monitor.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM monitors`); err != nil {
		return err
	}
	for _, rec := range records {
		instances := []byte("[]")
		if rec.RecentInstances != nil {
			instances, err = json.Marshal(rec.RecentInstances)
			if err != nil {
				return err
			}
		}
		var lastChecked sql.NullTime
		if rec.LastChecked != nil {
			lastChecked = sql.NullTime{Time: rec.LastChecked.UTC(), Valid: true}
		}
		if _, err := tx.Exec(`INSERT INTO monitors(id, kind, name, interval_seconds, last_status, last_checked, recent_instances)
			VALUES($1, $2, $3, $4, $5, $6, $7)`,
			rec.ID, string(rec.Kind), rec.Name, rec.IntervalSeconds, rec.LastStatus, lastChecked, instances); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Close() error { return s.db.Close() }
