// Package store: PostgreSQL backend for shared deployments.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL using the configured DSN and
// applies migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.PostgresDSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("postgres DSN not set")
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		slog.Error("PostgresStore failed to open connection", "error", err)
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgresStore ping failed", "error", err)
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("PostgresStore failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("PostgresStore initialized")
	return &PostgresStore{db: db}, nil
}

// GetConversation loads a live conversation record.
func (s *PostgresStore) GetConversation(ctx context.Context, threadID string) (*models.Conversation, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM conversations WHERE thread_id = $1 AND expires_at > NOW()`,
		threadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "threadID", threadID)
		return nil, fmt.Errorf("failed to get conversation %s: %w", threadID, err)
	}

	var conv models.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		slog.Error("PostgresStore GetConversation decode failed", "error", err, "threadID", threadID)
		return nil, fmt.Errorf("conversation %s: %w", threadID, models.ErrCorruptRecord)
	}
	return &conv, nil
}

// SaveConversation upserts the conversation record with a fresh expiry.
func (s *PostgresStore) SaveConversation(ctx context.Context, conv *models.Conversation, ttl time.Duration) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation %s: %w", conv.ThreadID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (thread_id, data, last_updated, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (thread_id) DO UPDATE SET data = EXCLUDED.data, last_updated = EXCLUDED.last_updated, expires_at = EXCLUDED.expires_at`,
		conv.ThreadID, data, conv.LastUpdated.UTC(), time.Now().UTC().Add(ttl))
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "threadID", conv.ThreadID)
		return fmt.Errorf("failed to save conversation %s: %w", conv.ThreadID, err)
	}
	return nil
}

// DeleteConversation removes the conversation record for a thread.
func (s *PostgresStore) DeleteConversation(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE thread_id = $1`, threadID)
	if err != nil {
		slog.Error("PostgresStore DeleteConversation failed", "error", err, "threadID", threadID)
		return fmt.Errorf("failed to delete conversation %s: %w", threadID, err)
	}
	return nil
}

// ListConversations purges expired rows and returns live conversations
// newest-first.
func (s *PostgresStore) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE expires_at <= NOW()`); err != nil {
		slog.Warn("PostgresStore expired conversation purge failed", "error", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM conversations WHERE expires_at > NOW() ORDER BY last_updated DESC`)
	if err != nil {
		slog.Error("PostgresStore ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	return scanConversations(rows)
}

// GetLead loads a live lead record.
func (s *PostgresStore) GetLead(ctx context.Context, threadID string) (*models.Lead, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM leads WHERE thread_id = $1 AND expires_at > NOW()`,
		threadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetLead failed", "error", err, "threadID", threadID)
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
func (s *PostgresStore) SaveLead(ctx context.Context, lead *models.Lead, ttl time.Duration) error {
	data, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal lead %s: %w", lead.ThreadID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (thread_id, data, reached_booking_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (thread_id) DO NOTHING`,
		lead.ThreadID, data, lead.ReachedBookingAt.UTC(), time.Now().UTC().Add(ttl))
	if err != nil {
		slog.Error("PostgresStore SaveLead failed", "error", err, "threadID", lead.ThreadID)
		return fmt.Errorf("failed to save lead %s: %w", lead.ThreadID, err)
	}
	return nil
}

// ListLeads returns live leads newest-first by booking time.
func (s *PostgresStore) ListLeads(ctx context.Context) ([]*models.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM leads WHERE expires_at > NOW() ORDER BY reached_booking_at DESC`)
	if err != nil {
		slog.Error("PostgresStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	return scanLeads(rows)
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
