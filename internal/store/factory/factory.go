package factory

import (
	"errors"
	"strings"

	"github.com/loykin/bpmon/internal/monitor"
	"github.com/loykin/bpmon/internal/store/file"
	pg "github.com/loykin/bpmon/internal/store/postgres"
	sq "github.com/loykin/bpmon/internal/store/sqlite"
)

// NewFromDSN selects a store implementation based on DSN.
// Supported:
//   - file:     "file://<path>" or a bare filepath (treated as a JSON file)
//   - sqlite:   "sqlite://<path>"
//   - postgres: DSN starting with "postgres://" or "postgresql://"
func NewFromDSN(dsn string) (monitor.Store, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	if ld == "" {
		return nil, errors.New("empty DSN")
	}
	if strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://") {
		return pg.New(d)
	}
	if strings.HasPrefix(ld, "sqlite://") {
		return sq.New(strings.TrimPrefix(d, "sqlite://"))
	}
	if strings.HasPrefix(ld, "file://") {
		return file.New(strings.TrimPrefix(d, "file://"))
	}
	// default to a JSON file path
	return file.New(d)
}
