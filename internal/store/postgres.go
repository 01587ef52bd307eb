// Package store provides storage backends for DoughPilot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/doughlab/DoughPilot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists session and saved-recipe state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSession(rec models.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("PostgresStore SaveSession marshal failed", "error", err)
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO session_slot (slot, record, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (slot) DO UPDATE SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		SessionSlot, string(data), time.Now().UnixMilli(),
	)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err)
		return fmt.Errorf("failed to save session record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSession() (*models.SessionRecord, error) {
	var raw string
	err := s.db.QueryRow(`SELECT record FROM session_slot WHERE slot = $1`, SessionSlot).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err)
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}
	var rec models.SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		slog.Warn("PostgresStore GetSession record corrupt, treating as no session", "error", err)
		return nil, nil
	}
	return &rec, nil
}

func (s *PostgresStore) DeleteSession() error {
	_, err := s.db.Exec(`DELETE FROM session_slot WHERE slot = $1`, SessionSlot)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err)
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddSavedRecipe(r models.SavedRecipe) (int64, error) {
	content, err := json.Marshal(r.Recipe)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal recipe content: %w", err)
	}
	var id int64
	err = s.db.QueryRow(
		`INSERT INTO saved_recipes (document_url, file_name, tab_name, downloaded_at, last_updated, times_made, content_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		r.DocumentURL, r.FileName, r.TabName, r.DownloadedAtMillis, r.LastUpdatedMillis, r.TimesMade, string(content),
	).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore AddSavedRecipe failed", "error", err, "tab", r.TabName)
		return 0, fmt.Errorf("failed to insert saved recipe %q: %w", r.TabName, err)
	}
	return id, nil
}

func (s *PostgresStore) ListSavedRecipes() ([]models.SavedRecipe, error) {
	rows, err := s.db.Query(
		`SELECT id, document_url, file_name, tab_name, downloaded_at, last_updated, times_made, content_json
		 FROM saved_recipes ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore ListSavedRecipes query failed", "error", err)
		return nil, fmt.Errorf("failed to query saved recipes: %w", err)
	}
	defer rows.Close()

	var recipes []models.SavedRecipe
	for rows.Next() {
		r, err := scanSavedRecipe(rows)
		if err != nil {
			slog.Error("PostgresStore ListSavedRecipes scan failed", "error", err)
			return nil, err
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate saved recipe rows: %w", err)
	}
	return recipes, nil
}

func (s *PostgresStore) GetSavedRecipe(id int64) (*models.SavedRecipe, error) {
	row := s.db.QueryRow(
		`SELECT id, document_url, file_name, tab_name, downloaded_at, last_updated, times_made, content_json
		 FROM saved_recipes WHERE id = $1`, id)
	r, err := scanSavedRecipeRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSavedRecipe failed", "error", err, "id", id)
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) DeleteSavedRecipe(id int64) error {
	_, err := s.db.Exec(`DELETE FROM saved_recipes WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteSavedRecipe failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete saved recipe %d: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) IncrementTimesMade(id int64) error {
	_, err := s.db.Exec(
		`UPDATE saved_recipes SET times_made = times_made + 1, last_updated = $1 WHERE id = $2`,
		time.Now().UnixMilli(), id)
	if err != nil {
		slog.Error("PostgresStore IncrementTimesMade failed", "error", err, "id", id)
		return fmt.Errorf("failed to increment times made for recipe %d: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) TouchSavedRecipe(id int64, nowMillis int64) error {
	_, err := s.db.Exec(`UPDATE saved_recipes SET last_updated = $1 WHERE id = $2`, nowMillis, id)
	if err != nil {
		slog.Error("PostgresStore TouchSavedRecipe failed", "error", err, "id", id)
		return fmt.Errorf("failed to touch saved recipe %d: %w", id, err)
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
