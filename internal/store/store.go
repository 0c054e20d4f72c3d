// Package store provides storage backends for conversation and lead records.
//
// All backends implement the same Store contract: durable key-value
// persistence keyed by thread ID, with per-record expiry. Conversations and
// leads have independent retention windows; leads outlive conversations.
package store

import (
	"context"
	"time"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

// Default retention windows. Conversations are kept for 30 days of
// inactivity; qualified leads are retained for 90 days.
const (
	DefaultConversationTTL = 30 * 24 * time.Hour
	DefaultLeadTTL         = 90 * 24 * time.Hour
)

// Store is the persistence contract shared by all backends.
//
// Get methods return (nil, nil) when no record exists. List methods return
// records newest-first: conversations by last_updated, leads by
// reached_booking_at. A decode failure on a stored conversation is reported
// as models.ErrCorruptRecord so callers can fall back to a fresh record.
type Store interface {
	GetConversation(ctx context.Context, threadID string) (*models.Conversation, error)
	SaveConversation(ctx context.Context, conv *models.Conversation, ttl time.Duration) error
	DeleteConversation(ctx context.Context, threadID string) error
	ListConversations(ctx context.Context) ([]*models.Conversation, error)

	GetLead(ctx context.Context, threadID string) (*models.Lead, error)
	SaveLead(ctx context.Context, lead *models.Lead, ttl time.Duration) error
	ListLeads(ctx context.Context) ([]*models.Lead, error)

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	RedisURL    string
	PostgresDSN string
	SQLitePath  string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithRedisURL sets the Redis connection URL for the Redis-backed store.
func WithRedisURL(url string) Option {
	return func(o *Opts) { o.RedisURL = url }
}

// WithPostgresDSN sets the PostgreSQL DSN for the Postgres-backed store.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.PostgresDSN = dsn }
}

// WithSQLitePath sets the database file path for the SQLite-backed store.
func WithSQLitePath(path string) Option {
	return func(o *Opts) { o.SQLitePath = path }
}
