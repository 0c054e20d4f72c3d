// Package store: Redis backend, the reference deployment target.
//
// Conversations live under "conversation:<thread_id>" and leads under
// "lead:<thread_id>", both as JSON strings with native Redis expiry. Thread
// IDs of qualified leads are additionally added to the "leads:all" set used
// for listing. Every conversation save publishes a compact update on the
// "conversation_updates" channel for real-time subscribers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

const (
	conversationKeyPrefix = "conversation:"
	leadKeyPrefix         = "lead:"
	leadIndexKey          = "leads:all"
	updateChannel         = "conversation_updates"

	redisConnectTimeout = 5 * time.Second
)

// RedisStore implements Store backed by a Redis server.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis using the configured URL and verifies the
// connection with a bounded ping.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.RedisURL == "" {
		slog.Error("RedisStore URL not set")
		return nil, fmt.Errorf("redis URL not set")
	}

	parsed, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("RedisStore failed to parse URL", "error", err)
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(parsed)

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("RedisStore ping failed", "error", err)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("RedisStore connected", "addr", parsed.Addr)
	return &RedisStore{client: client}, nil
}

func conversationKey(threadID string) string {
	return conversationKeyPrefix + threadID
}

func leadKey(threadID string) string {
	return leadKeyPrefix + threadID
}

// GetConversation loads and decodes a conversation record.
func (s *RedisStore) GetConversation(ctx context.Context, threadID string) (*models.Conversation, error) {
	data, err := s.client.Get(ctx, conversationKey(threadID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		slog.Error("RedisStore GetConversation failed", "error", err, "threadID", threadID)
		return nil, fmt.Errorf("failed to get conversation %s: %w", threadID, err)
	}

	var conv models.Conversation
	if err := json.Unmarshal([]byte(data), &conv); err != nil {
		slog.Error("RedisStore GetConversation decode failed", "error", err, "threadID", threadID)
		return nil, fmt.Errorf("conversation %s: %w", threadID, models.ErrCorruptRecord)
	}
	return &conv, nil
}

// SaveConversation stores the conversation with the given TTL and publishes
// a stage update for real-time subscribers. Publish failures are logged but
// never fail the save.
func (s *RedisStore) SaveConversation(ctx context.Context, conv *models.Conversation, ttl time.Duration) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation %s: %w", conv.ThreadID, err)
	}

	if err := s.client.Set(ctx, conversationKey(conv.ThreadID), data, ttl).Err(); err != nil {
		slog.Error("RedisStore SaveConversation failed", "error", err, "threadID", conv.ThreadID)
		return fmt.Errorf("failed to save conversation %s: %w", conv.ThreadID, err)
	}

	update, err := json.Marshal(map[string]string{
		"thread_id": conv.ThreadID,
		"stage":     string(conv.Stage),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err == nil {
		if pubErr := s.client.Publish(ctx, updateChannel, update).Err(); pubErr != nil {
			slog.Warn("RedisStore update publish failed", "error", pubErr, "threadID", conv.ThreadID)
		}
	}

	slog.Debug("RedisStore SaveConversation succeeded", "threadID", conv.ThreadID, "stage", conv.Stage)
	return nil
}

// DeleteConversation removes the conversation record for a thread.
func (s *RedisStore) DeleteConversation(ctx context.Context, threadID string) error {
	if err := s.client.Del(ctx, conversationKey(threadID)).Err(); err != nil {
		slog.Error("RedisStore DeleteConversation failed", "error", err, "threadID", threadID)
		return fmt.Errorf("failed to delete conversation %s: %w", threadID, err)
	}
	return nil
}

// ListConversations scans all conversation keys and returns the decoded
// records newest-first. Records that vanish mid-scan (expiry) are skipped.
func (s *RedisStore) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	var conversations []*models.Conversation

	iter := s.client.Scan(ctx, 0, conversationKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to get conversation %s: %w", iter.Val(), err)
		}
		var conv models.Conversation
		if err := json.Unmarshal([]byte(data), &conv); err != nil {
			slog.Warn("RedisStore ListConversations skipping corrupt record", "key", iter.Val(), "error", err)
			continue
		}
		conversations = append(conversations, &conv)
	}
	if err := iter.Err(); err != nil {
		slog.Error("RedisStore ListConversations scan failed", "error", err)
		return nil, fmt.Errorf("failed to scan conversations: %w", err)
	}

	sortConversationsByLastUpdated(conversations)
	return conversations, nil
}

// GetLead loads and decodes a lead record.
func (s *RedisStore) GetLead(ctx context.Context, threadID string) (*models.Lead, error) {
	data, err := s.client.Get(ctx, leadKey(threadID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		slog.Error("RedisStore GetLead failed", "error", err, "threadID", threadID)
		return nil, fmt.Errorf("failed to get lead %s: %w", threadID, err)
	}

	var lead models.Lead
	if err := json.Unmarshal([]byte(data), &lead); err != nil {
		return nil, fmt.Errorf("lead %s: %w", threadID, models.ErrCorruptRecord)
	}
	return &lead, nil
}

// SaveLead stores the lead with the given TTL and adds the thread ID to the
// global lead index on first creation. The index is a set so a lead
// re-created after its TTL lapses cannot appear twice in listings.
func (s *RedisStore) SaveLead(ctx context.Context, lead *models.Lead, ttl time.Duration) error {
	data, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal lead %s: %w", lead.ThreadID, err)
	}

	created, err := s.client.SetNX(ctx, leadKey(lead.ThreadID), data, ttl).Result()
	if err != nil {
		slog.Error("RedisStore SaveLead failed", "error", err, "threadID", lead.ThreadID)
		return fmt.Errorf("failed to save lead %s: %w", lead.ThreadID, err)
	}
	if !created {
		slog.Debug("RedisStore SaveLead lead already exists", "threadID", lead.ThreadID)
		return nil
	}

	if err := s.client.SAdd(ctx, leadIndexKey, lead.ThreadID).Err(); err != nil {
		slog.Error("RedisStore SaveLead index add failed", "error", err, "threadID", lead.ThreadID)
		return fmt.Errorf("failed to index lead %s: %w", lead.ThreadID, err)
	}

	slog.Info("RedisStore lead stored", "threadID", lead.ThreadID)
	return nil
}

// ListLeads walks the global lead index and returns the decoded leads
// newest-first by booking time. Expired leads are skipped.
func (s *RedisStore) ListLeads(ctx context.Context) ([]*models.Lead, error) {
	threadIDs, err := s.client.SMembers(ctx, leadIndexKey).Result()
	if err != nil {
		slog.Error("RedisStore ListLeads index read failed", "error", err)
		return nil, fmt.Errorf("failed to read lead index: %w", err)
	}

	var leads []*models.Lead
	for _, threadID := range threadIDs {
		lead, err := s.GetLead(ctx, threadID)
		if err != nil {
			if errors.Is(err, models.ErrCorruptRecord) {
				slog.Warn("RedisStore ListLeads skipping corrupt lead", "threadID", threadID)
				continue
			}
			return nil, err
		}
		if lead != nil {
			leads = append(leads, lead)
		}
	}

	sortLeadsByBookingTime(leads)
	return leads, nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
