package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	// Import the pure Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/timetable/internal/profile"
	"github.com/hrygo/timetable/store"
)

// ============================================================================
// SQLITE SUPPORT (Development / Demo / Offline)
// ============================================================================
// SQLite keeps a local copy of the schedule records so the service can run
// without the registrar API. A single connection is used, which also keeps
// ":memory:" databases alive for the lifetime of the driver.
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database at profile.DSN and applies the schema.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("sqlite", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to set busy timeout")
	}
	if err := store.ApplySchema(ctx, db, "sqlite"); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{
		db:      db,
		profile: profile,
	}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
