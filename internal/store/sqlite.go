// Package store: SQLite backend for single-node deployments.
//
// Records are stored as JSON blobs with an expires_at column; expiry is
// enforced by filtering on read and purging opportunistically on list.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store backed by a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the SQLite database at the
// configured path and applies migrations.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.SQLitePath == "" {
		slog.Error("SQLiteStore path not set")
		return nil, fmt.Errorf("sqlite database path not set")
	}

	dir := filepath.Dir(cfg.SQLitePath)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteStore failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.SQLitePath)
	if err != nil {
		slog.Error("SQLiteStore failed to open database", "error", err)
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLiteStore ping failed", "error", err)
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLiteStore failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("SQLiteStore initialized", "path", cfg.SQLitePath)
	return &SQLiteStore{db: db}, nil
}

// GetConversation loads a live conversation record.
func (s *SQLiteStore) GetConversation(ctx context.Context, threadID string) (*models.Conversation, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM conversations WHERE thread_id = ? AND expires_at > ?`,
		threadID, time.Now().UTC()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "threadID", threadID)
		return nil, fmt.Errorf("failed to get conversation %s: %w", threadID, err)
	}

	var conv models.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		slog.Error("SQLiteStore GetConversation decode failed", "error", err, "threadID", threadID)
		return nil, fmt.Errorf("conversation %s: %w", threadID, models.ErrCorruptRecord)
	}
	return &conv, nil
}

// SaveConversation upserts the conversation record with a fresh expiry.
func (s *SQLiteStore) SaveConversation(ctx context.Context, conv *models.Conversation, ttl time.Duration) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation %s: %w", conv.ThreadID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (thread_id, data, last_updated, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET data = excluded.data, last_updated = excluded.last_updated, expires_at = excluded.expires_at`,
		conv.ThreadID, data, conv.LastUpdated.UTC(), time.Now().UTC().Add(ttl))
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "threadID", conv.ThreadID)
		return fmt.Errorf("failed to save conversation %s: %w", conv.ThreadID, err)
	}
	return nil
}

// DeleteConversation removes the conversation record for a thread.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE thread_id = ?`, threadID)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversation failed", "error", err, "threadID", threadID)
		return fmt.Errorf("failed to delete conversation %s: %w", threadID, err)
	}
	return nil
}

// ListConversations purges expired rows and returns live conversations
// newest-first.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE expires_at <= ?`, now); err != nil {
		slog.Warn("SQLiteStore expired conversation purge failed", "error", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM conversations WHERE expires_at > ? ORDER BY last_updated DESC`, now)
	if err != nil {
		slog.Error("SQLiteStore ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	return scanConversations(rows)
}

// GetLead loads a live lead record.
func (s *SQLiteStore) GetLead(ctx context.Context, threadID string) (*models.Lead, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM leads WHERE thread_id = ? AND expires_at > ?`,
		threadID, time.Now().UTC()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetLead failed", "error", err, "threadID", threadID)
		return nil, fmt.Errorf("failed to get lead %s: %w", threadID, err)
	}

	var lead models.Lead
	if err := json.Unmarshal(data, &lead); err != nil {
		return nil, fmt.Errorf("lead %s: %w", threadID, models.ErrCorruptRecord)
	}
	return &lead, nil
}

// SaveLead inserts the lead record if absent; existing leads are left
// untouched so repeated bookings cannot overwrite the original snapshot.
func (s *SQLiteStore) SaveLead(ctx context.Context, lead *models.Lead, ttl time.Duration) error {
	data, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal lead %s: %w", lead.ThreadID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (thread_id, data, reached_booking_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO NOTHING`,
		lead.ThreadID, data, lead.ReachedBookingAt.UTC(), time.Now().UTC().Add(ttl))
	if err != nil {
		slog.Error("SQLiteStore SaveLead failed", "error", err, "threadID", lead.ThreadID)
		return fmt.Errorf("failed to save lead %s: %w", lead.ThreadID, err)
	}
	return nil
}

// ListLeads returns live leads newest-first by booking time.
func (s *SQLiteStore) ListLeads(ctx context.Context) ([]*models.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM leads WHERE expires_at > ? ORDER BY reached_booking_at DESC`, time.Now().UTC())
	if err != nil {
		slog.Error("SQLiteStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	return scanLeads(rows)
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanConversations decodes conversation rows, skipping corrupt records.
func scanConversations(rows *sql.Rows) ([]*models.Conversation, error) {
	var conversations []*models.Conversation
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		var conv models.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			slog.Warn("store skipping corrupt conversation row", "error", err)
			continue
		}
		conversations = append(conversations, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	return conversations, nil
}

// scanLeads decodes lead rows, skipping corrupt records.
func scanLeads(rows *sql.Rows) ([]*models.Lead, error) {
	var leads []*models.Lead
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		var lead models.Lead
		if err := json.Unmarshal(data, &lead); err != nil {
			slog.Warn("store skipping corrupt lead row", "error", err)
			continue
		}
		leads = append(leads, &lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	return leads, nil
}
