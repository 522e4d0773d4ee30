package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/timetable/internal/profile"
	"github.com/hrygo/timetable/store"
	"github.com/hrygo/timetable/store/db/postgres"
	"github.com/hrygo/timetable/store/db/remote"
	"github.com/hrygo/timetable/store/db/sqlite"
)

// ============================================================================
// BACKEND SUPPORT POLICY
// ============================================================================
// remote:   the registrar's schedule API (production source of truth).
// postgres: a mirrored schedule table for deployments that own the data.
// sqlite:   local development, demo mode and tests.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "remote":
		driver, err = remote.NewDB(profile)
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'remote', 'sqlite' and 'postgres' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
