package store

import (
	"context"
	"testing"
	"time"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

func TestInMemoryStoreConversationRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	conv := models.NewConversation("thread-1")
	conv.Stage = models.StageScoping
	conv.Context.MessageCount = 4
	conv.Context.BusinessType = "e-commerce"
	conv.Context.Features = []string{"we need inventory tracking"}
	conv.History = []models.Message{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi there"},
	}

	if err := s.SaveConversation(ctx, conv, time.Hour); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}

	got, err := s.GetConversation(ctx, "thread-1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected conversation, got nil")
	}
	if got.Stage != models.StageScoping {
		t.Errorf("expected stage %s, got %s", models.StageScoping, got.Stage)
	}
	if got.Context.MessageCount != 4 {
		t.Errorf("expected message count 4, got %d", got.Context.MessageCount)
	}
	if got.Context.BusinessType != "e-commerce" {
		t.Errorf("expected business type e-commerce, got %q", got.Context.BusinessType)
	}
	if len(got.History) != 2 {
		t.Fatalf("expected 2 history messages, got %d", len(got.History))
	}
	if got.History[0].Role != models.RoleUser || got.History[0].Content != "hello" {
		t.Errorf("unexpected first message: %+v", got.History[0])
	}
}

func TestInMemoryStoreGetConversationAbsent(t *testing.T) {
	s := NewInMemoryStore()

	conv, err := s.GetConversation(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conv != nil {
		t.Errorf("expected nil for absent thread, got %+v", conv)
	}
}

func TestInMemoryStoreConversationExpiry(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	conv := models.NewConversation("thread-1")
	if err := s.SaveConversation(ctx, conv, time.Millisecond); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	got, err := s.GetConversation(ctx, "thread-1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected expired conversation to be absent, got %+v", got)
	}

	conversations, err := s.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(conversations) != 0 {
		t.Errorf("expected no live conversations, got %d", len(conversations))
	}
}

func TestInMemoryStoreDeleteConversation(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	conv := models.NewConversation("thread-1")
	if err := s.SaveConversation(ctx, conv, time.Hour); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}
	if err := s.DeleteConversation(ctx, "thread-1"); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	got, err := s.GetConversation(ctx, "thread-1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected conversation gone after delete, got %+v", got)
	}
}

func TestInMemoryStoreListConversationsOrdering(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now()

	for i, threadID := range []string{"oldest", "middle", "newest"} {
		conv := models.NewConversation(threadID)
		conv.LastUpdated = base.Add(time.Duration(i) * time.Minute)
		if err := s.SaveConversation(ctx, conv, time.Hour); err != nil {
			t.Fatalf("SaveConversation failed: %v", err)
		}
	}

	conversations, err := s.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(conversations) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(conversations))
	}
	want := []string{"newest", "middle", "oldest"}
	for i, conv := range conversations {
		if conv.ThreadID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], conv.ThreadID)
		}
	}
}

func TestInMemoryStoreSaveLeadIdempotent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	first := &models.Lead{
		ThreadID:         "thread-1",
		BusinessType:     "SaaS",
		Budget:           "$10k",
		TotalMessages:    8,
		ReachedBookingAt: time.Now(),
	}
	if err := s.SaveLead(ctx, first, time.Hour); err != nil {
		t.Fatalf("SaveLead failed: %v", err)
	}

	second := &models.Lead{
		ThreadID:      "thread-1",
		BusinessType:  "overwritten",
		TotalMessages: 99,
	}
	if err := s.SaveLead(ctx, second, time.Hour); err != nil {
		t.Fatalf("second SaveLead failed: %v", err)
	}

	got, err := s.GetLead(ctx, "thread-1")
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected lead, got nil")
	}
	if got.BusinessType != "SaaS" {
		t.Errorf("expected original lead preserved, got business type %q", got.BusinessType)
	}
	if got.TotalMessages != 8 {
		t.Errorf("expected original message count 8, got %d", got.TotalMessages)
	}

	leads, err := s.ListLeads(ctx)
	if err != nil {
		t.Fatalf("ListLeads failed: %v", err)
	}
	if len(leads) != 1 {
		t.Errorf("expected 1 lead after duplicate save, got %d", len(leads))
	}
}

func TestInMemoryStoreLeadRecreatedAfterExpiryListsOnce(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	expired := &models.Lead{ThreadID: "thread-1", BusinessType: "SaaS"}
	if err := s.SaveLead(ctx, expired, time.Millisecond); err != nil {
		t.Fatalf("SaveLead failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	fresh := &models.Lead{ThreadID: "thread-1", BusinessType: "e-commerce"}
	if err := s.SaveLead(ctx, fresh, time.Hour); err != nil {
		t.Fatalf("SaveLead after expiry failed: %v", err)
	}

	leads, err := s.ListLeads(ctx)
	if err != nil {
		t.Fatalf("ListLeads failed: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected exactly 1 lead after re-creation, got %d", len(leads))
	}
	if leads[0].BusinessType != "e-commerce" {
		t.Errorf("expected re-created lead, got %q", leads[0].BusinessType)
	}
}

func TestInMemoryStoreListLeadsOrdering(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now()

	for i, threadID := range []string{"first", "second", "third"} {
		lead := &models.Lead{
			ThreadID:         threadID,
			ReachedBookingAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveLead(ctx, lead, time.Hour); err != nil {
			t.Fatalf("SaveLead failed: %v", err)
		}
	}

	leads, err := s.ListLeads(ctx)
	if err != nil {
		t.Fatalf("ListLeads failed: %v", err)
	}
	if len(leads) != 3 {
		t.Fatalf("expected 3 leads, got %d", len(leads))
	}
	want := []string{"third", "second", "first"}
	for i, lead := range leads {
		if lead.ThreadID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], lead.ThreadID)
		}
	}
}

func TestInMemoryStoreClonesOnRead(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	conv := models.NewConversation("thread-1")
	conv.History = []models.Message{{Role: models.RoleUser, Content: "original"}}
	if err := s.SaveConversation(ctx, conv, time.Hour); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}

	first, err := s.GetConversation(ctx, "thread-1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	first.History[0].Content = "mutated"
	first.Context.Features = append(first.Context.Features, "extra")

	second, err := s.GetConversation(ctx, "thread-1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if second.History[0].Content != "original" {
		t.Errorf("stored history mutated through returned copy: %q", second.History[0].Content)
	}
	if len(second.Context.Features) != 0 {
		t.Errorf("stored features mutated through returned copy: %v", second.Context.Features)
	}
}
