// Package store: in-memory backend used for tests and local development.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

type memoryEntry[T any] struct {
	record    T
	expiresAt time.Time
}

func (e memoryEntry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemoryStore keeps conversations and leads in process memory, honoring
// the same expiry semantics as the durable backends.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]memoryEntry[models.Conversation]
	leads         map[string]memoryEntry[models.Lead]
	leadIndex     []string // thread IDs in lead-creation order
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]memoryEntry[models.Conversation]),
		leads:         make(map[string]memoryEntry[models.Lead]),
	}
}

// GetConversation returns the conversation for a thread, or (nil, nil) if
// absent or expired.
func (s *InMemoryStore) GetConversation(ctx context.Context, threadID string) (*models.Conversation, error) {
	s.mu.RLock()
	entry, ok := s.conversations[threadID]
	s.mu.RUnlock()
	if !ok || entry.expired(time.Now()) {
		return nil, nil
	}
	conv := cloneConversation(entry.record)
	return &conv, nil
}

// SaveConversation stores a copy of the conversation with the given TTL.
func (s *InMemoryStore) SaveConversation(ctx context.Context, conv *models.Conversation, ttl time.Duration) error {
	entry := memoryEntry[models.Conversation]{record: cloneConversation(*conv)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.conversations[conv.ThreadID] = entry
	s.mu.Unlock()
	return nil
}

// DeleteConversation removes the conversation for a thread.
func (s *InMemoryStore) DeleteConversation(ctx context.Context, threadID string) error {
	s.mu.Lock()
	delete(s.conversations, threadID)
	s.mu.Unlock()
	return nil
}

// ListConversations returns all live conversations, newest-first.
func (s *InMemoryStore) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	now := time.Now()
	s.mu.RLock()
	conversations := make([]*models.Conversation, 0, len(s.conversations))
	for _, entry := range s.conversations {
		if entry.expired(now) {
			continue
		}
		conv := cloneConversation(entry.record)
		conversations = append(conversations, &conv)
	}
	s.mu.RUnlock()

	sortConversationsByLastUpdated(conversations)
	return conversations, nil
}

// GetLead returns the lead for a thread, or (nil, nil) if absent or expired.
func (s *InMemoryStore) GetLead(ctx context.Context, threadID string) (*models.Lead, error) {
	s.mu.RLock()
	entry, ok := s.leads[threadID]
	s.mu.RUnlock()
	if !ok || entry.expired(time.Now()) {
		return nil, nil
	}
	lead := cloneLead(entry.record)
	return &lead, nil
}

// SaveLead stores a copy of the lead if the thread has no live lead yet.
// Existing leads are left untouched so repeated bookings cannot overwrite
// the original snapshot.
func (s *InMemoryStore) SaveLead(ctx context.Context, lead *models.Lead, ttl time.Duration) error {
	entry := memoryEntry[models.Lead]{record: cloneLead(*lead)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	if existing, ok := s.leads[lead.ThreadID]; ok && !existing.expired(time.Now()) {
		s.mu.Unlock()
		return nil
	}
	if _, exists := s.leads[lead.ThreadID]; !exists {
		s.leadIndex = append(s.leadIndex, lead.ThreadID)
	}
	s.leads[lead.ThreadID] = entry
	s.mu.Unlock()
	return nil
}

// ListLeads returns all live leads, newest-first by booking time.
func (s *InMemoryStore) ListLeads(ctx context.Context) ([]*models.Lead, error) {
	now := time.Now()
	s.mu.RLock()
	leads := make([]*models.Lead, 0, len(s.leadIndex))
	for _, threadID := range s.leadIndex {
		entry, ok := s.leads[threadID]
		if !ok || entry.expired(now) {
			continue
		}
		lead := cloneLead(entry.record)
		leads = append(leads, &lead)
	}
	s.mu.RUnlock()

	sortLeadsByBookingTime(leads)
	return leads, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

// cloneConversation copies a conversation so callers cannot mutate stored state.
func cloneConversation(conv models.Conversation) models.Conversation {
	conv.History = append([]models.Message(nil), conv.History...)
	conv.Context.Features = append([]string(nil), conv.Context.Features...)
	return conv
}

func cloneLead(lead models.Lead) models.Lead {
	lead.Features = append([]string(nil), lead.Features...)
	return lead
}
