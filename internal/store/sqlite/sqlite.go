package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/bpmon/internal/monitor"
)

// Store implements monitor.Store on SQLite (modernc.org/sqlite driver,
// CGO-free). Path is a filesystem path; use ":memory:" for in-memory.
// Save replaces the whole monitor set in one transaction so consecutive
// writes fully supersede each other, matching the file backend semantics.

type Store struct {
	db *sql.DB
}

// New opens (and if needed initializes) a SQLite database at path.
func New(path string) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
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
		last_checked TIMESTAMP NULL,
		recent_instances TEXT NOT NULL DEFAULT '[]'
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
		var instances string
		if err := rows.Scan(&rec.ID, &kind, &rec.Name, &rec.IntervalSeconds, &rec.LastStatus, &lastChecked, &instances); err != nil {
			return nil, err
		}
		rec.Kind = monitor.Kind(kind)
		if lastChecked.Valid {
			t := lastChecked.Time.UTC()
			rec.LastChecked = &t
		}
		if instances != "" && instances != "[]" {
			if err := json.Unmarshal([]byte(instances), &rec.RecentInstances); err != nil {
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
			var err error
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
			VALUES(?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, string(rec.Kind), rec.Name, rec.IntervalSeconds, rec.LastStatus, lastChecked, string(instances)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Close() error { return s.db.Close() }
