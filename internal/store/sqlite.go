// Package store provides storage backends for DoughPilot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/doughlab/DoughPilot/internal/models"
	"github.com/doughlab/DoughPilot/internal/recipe"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists session and saved-recipe state in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveSession overwrites the single session slot with the given record.
func (s *SQLiteStore) SaveSession(rec models.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("SQLiteStore SaveSession marshal failed", "error", err)
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO session_slot (slot, record, updated_at) VALUES (?, ?, ?)`,
		SessionSlot, string(data), time.Now().UnixMilli(),
	)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err)
		return fmt.Errorf("failed to save session record: %w", err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "recipe", rec.RecipeID, "step", rec.CurrentStepIndex, "alarm", rec.NextAlarmAtMillis)
	return nil
}

// GetSession reads the session slot. A missing or corrupt record yields
// (nil, nil).
func (s *SQLiteStore) GetSession() (*models.SessionRecord, error) {
	var raw string
	err := s.db.QueryRow(`SELECT record FROM session_slot WHERE slot = ?`, SessionSlot).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err)
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}
	var rec models.SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// Corrupt slot: treat as no session rather than failing navigation.
		slog.Warn("SQLiteStore GetSession record corrupt, treating as no session", "error", err)
		return nil, nil
	}
	return &rec, nil
}

// DeleteSession clears the session slot. Deleting an empty slot is a no-op.
func (s *SQLiteStore) DeleteSession() error {
	_, err := s.db.Exec(`DELETE FROM session_slot WHERE slot = ?`, SessionSlot)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err)
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	slog.Debug("SQLiteStore DeleteSession succeeded")
	return nil
}

func (s *SQLiteStore) AddSavedRecipe(r models.SavedRecipe) (int64, error) {
	content, err := json.Marshal(r.Recipe)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal recipe content: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO saved_recipes (document_url, file_name, tab_name, downloaded_at, last_updated, times_made, content_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.DocumentURL, r.FileName, r.TabName, r.DownloadedAtMillis, r.LastUpdatedMillis, r.TimesMade, string(content),
	)
	if err != nil {
		slog.Error("SQLiteStore AddSavedRecipe failed", "error", err, "tab", r.TabName)
		return 0, fmt.Errorf("failed to insert saved recipe %q: %w", r.TabName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read saved recipe id: %w", err)
	}
	slog.Debug("SQLiteStore AddSavedRecipe succeeded", "id", id, "tab", r.TabName)
	return id, nil
}

func (s *SQLiteStore) ListSavedRecipes() ([]models.SavedRecipe, error) {
	rows, err := s.db.Query(
		`SELECT id, document_url, file_name, tab_name, downloaded_at, last_updated, times_made, content_json
		 FROM saved_recipes ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore ListSavedRecipes query failed", "error", err)
		return nil, fmt.Errorf("failed to query saved recipes: %w", err)
	}
	defer rows.Close()

	var recipes []models.SavedRecipe
	for rows.Next() {
		r, err := scanSavedRecipe(rows)
		if err != nil {
			slog.Error("SQLiteStore ListSavedRecipes scan failed", "error", err)
			return nil, err
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate saved recipe rows: %w", err)
	}
	slog.Debug("SQLiteStore ListSavedRecipes succeeded", "count", len(recipes))
	return recipes, nil
}

func (s *SQLiteStore) GetSavedRecipe(id int64) (*models.SavedRecipe, error) {
	row := s.db.QueryRow(
		`SELECT id, document_url, file_name, tab_name, downloaded_at, last_updated, times_made, content_json
		 FROM saved_recipes WHERE id = ?`, id)
	r, err := scanSavedRecipeRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSavedRecipe failed", "error", err, "id", id)
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) DeleteSavedRecipe(id int64) error {
	_, err := s.db.Exec(`DELETE FROM saved_recipes WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteSavedRecipe failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete saved recipe %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) IncrementTimesMade(id int64) error {
	_, err := s.db.Exec(
		`UPDATE saved_recipes SET times_made = times_made + 1, last_updated = ? WHERE id = ?`,
		time.Now().UnixMilli(), id)
	if err != nil {
		slog.Error("SQLiteStore IncrementTimesMade failed", "error", err, "id", id)
		return fmt.Errorf("failed to increment times made for recipe %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) TouchSavedRecipe(id int64, nowMillis int64) error {
	_, err := s.db.Exec(`UPDATE saved_recipes SET last_updated = ? WHERE id = ?`, nowMillis, id)
	if err != nil {
		slog.Error("SQLiteStore TouchSavedRecipe failed", "error", err, "id", id)
		return fmt.Errorf("failed to touch saved recipe %d: %w", id, err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

// rowScanner abstracts sql.Row and sql.Rows for the shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSavedRecipe(rows *sql.Rows) (models.SavedRecipe, error) {
	return scanSaved(rows)
}

func scanSavedRecipeRow(row *sql.Row) (models.SavedRecipe, error) {
	return scanSaved(row)
}

func scanSaved(sc rowScanner) (models.SavedRecipe, error) {
	var r models.SavedRecipe
	var content string
	err := sc.Scan(&r.ID, &r.DocumentURL, &r.FileName, &r.TabName,
		&r.DownloadedAtMillis, &r.LastUpdatedMillis, &r.TimesMade, &content)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(content), &r.Recipe); err != nil {
		// Keep the row usable; the recipe content is simply empty.
		slog.Warn("saved recipe content corrupt", "id", r.ID, "error", err)
		r.Recipe = recipe.Recipe{ID: r.TabName, Name: r.TabName}
	}
	return r, nil
}
