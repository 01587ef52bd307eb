// Package store provides storage backends for DoughPilot.
//
// It persists two things: the single active session record (one fixed slot,
// full overwrite, last write wins) and the saved-recipe library. SQLite and
// PostgreSQL backends are provided, plus an in-memory store for tests.
package store

import (
	"strings"

	"github.com/doughlab/DoughPilot/internal/models"
)

// SessionSlot is the well-known key of the single active session record.
const SessionSlot = "active"

// Store is the persistence interface shared by all backends.
//
// GetSession returns (nil, nil) when no session exists or when the stored
// record is corrupt — persistence corruption fails soft to "no session".
type Store interface {
	SaveSession(rec models.SessionRecord) error
	GetSession() (*models.SessionRecord, error)
	DeleteSession() error

	AddSavedRecipe(r models.SavedRecipe) (int64, error)
	ListSavedRecipes() ([]models.SavedRecipe, error)
	GetSavedRecipe(id int64) (*models.SavedRecipe, error)
	DeleteSavedRecipe(id int64) error
	IncrementTimesMade(id int64) error
	TouchSavedRecipe(id int64, nowMillis int64) error

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (assumed to be a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
