package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/store"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		ctx  models.Context
		want string
	}{
		{
			name: "all fields",
			ctx: models.Context{
				BusinessType: "e-commerce",
				Budget:       "around $15k",
				Timeline:     "6 weeks would be ideal",
			},
			want: "Business: e-commerce | Budget: around $15k | Timeline: 6 weeks would be ideal",
		},
		{
			name: "business only",
			ctx:  models.Context{BusinessType: "SaaS"},
			want: "Business: SaaS",
		},
		{
			name: "budget and timeline",
			ctx:  models.Context{Budget: "$5k", Timeline: "2 months"},
			want: "Budget: $5k | Timeline: 2 months",
		},
		{
			name: "empty context",
			ctx:  models.Context{},
			want: "No summary available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(tt.ctx); got != tt.want {
				t.Errorf("Summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}

// recordingSink captures delivered notifications for assertions.
type recordingSink struct {
	mu            sync.Mutex
	notifications []Notification
	err           error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return s.err
}

func (s *recordingSink) delivered() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.notifications...)
}

func bookingConversation(threadID string) *models.Conversation {
	conv := models.NewConversation(threadID)
	conv.Stage = models.StageProposal
	conv.Context = models.Context{
		MessageCount: 8,
		BusinessType: "e-commerce",
		Timeline:     "6 weeks",
		Budget:       "$10k budget",
		Features:     []string{"we need inventory tracking"},
	}
	conv.History = []models.Message{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi"},
	}
	return conv
}

func TestDispatcherDeliversToAllSinks(t *testing.T) {
	st := store.NewInMemoryStore()
	first := &recordingSink{}
	second := &recordingSink{}
	d := NewDispatcher(st, WithSink(first), WithSink(second))

	d.StageReached(context.Background(), bookingConversation("thread-1"), models.StageProposal)

	for _, sink := range []*recordingSink{first, second} {
		got := sink.delivered()
		if len(got) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(got))
		}
		if got[0].ThreadID != "thread-1" {
			t.Errorf("expected thread-1, got %s", got[0].ThreadID)
		}
		if got[0].StageReached != models.StageProposal {
			t.Errorf("expected stage proposal, got %s", got[0].StageReached)
		}
		if got[0].Summary == "No summary available" {
			t.Error("expected populated summary")
		}
	}
}

func TestDispatcherSinkFailureDoesNotBlockOthers(t *testing.T) {
	st := store.NewInMemoryStore()
	failing := &recordingSink{err: context.DeadlineExceeded}
	healthy := &recordingSink{}
	d := NewDispatcher(st, WithSink(failing), WithSink(healthy))

	d.StageReached(context.Background(), bookingConversation("thread-1"), models.StageBooking)

	if len(healthy.delivered()) != 1 {
		t.Errorf("expected healthy sink to receive notification despite failing sink")
	}
}

func TestDispatcherRecordsLeadOnBooking(t *testing.T) {
	st := store.NewInMemoryStore()
	d := NewDispatcher(st)
	conv := bookingConversation("thread-1")

	d.StageReached(context.Background(), conv, models.StageBooking)

	lead, err := st.GetLead(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	if lead == nil {
		t.Fatal("expected lead to be recorded on booking")
	}
	if lead.BusinessType != "e-commerce" {
		t.Errorf("expected business type e-commerce, got %q", lead.BusinessType)
	}
	if lead.TotalMessages != 2 {
		t.Errorf("expected total messages 2, got %d", lead.TotalMessages)
	}
	if lead.Summary == "" {
		t.Error("expected lead summary to be set")
	}
}

func TestDispatcherDoesNotRecordLeadOnProposal(t *testing.T) {
	st := store.NewInMemoryStore()
	d := NewDispatcher(st)

	d.StageReached(context.Background(), bookingConversation("thread-1"), models.StageProposal)

	lead, err := st.GetLead(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	if lead != nil {
		t.Errorf("expected no lead for proposal stage, got %+v", lead)
	}
}

func TestDispatcherLeadIdempotentAcrossBookings(t *testing.T) {
	st := store.NewInMemoryStore()
	d := NewDispatcher(st)
	conv := bookingConversation("thread-1")

	d.StageReached(context.Background(), conv, models.StageBooking)

	originalLead, err := st.GetLead(context.Background(), "thread-1")
	if err != nil || originalLead == nil {
		t.Fatalf("expected lead after first booking, err=%v", err)
	}

	conv.Context.BusinessType = "changed"
	d.StageReached(context.Background(), conv, models.StageBooking)

	lead, err := st.GetLead(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	if lead.BusinessType != originalLead.BusinessType {
		t.Errorf("expected original lead preserved, got business type %q", lead.BusinessType)
	}

	leads, err := st.ListLeads(context.Background())
	if err != nil {
		t.Fatalf("ListLeads failed: %v", err)
	}
	if len(leads) != 1 {
		t.Errorf("expected 1 lead after repeated booking, got %d", len(leads))
	}
}

func TestWebhookSinkDeliversJSON(t *testing.T) {
	var received Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL)
	n := Notification{
		ThreadID:     "thread-1",
		StageReached: models.StageBooking,
		BusinessType: "SaaS",
		Timestamp:    time.Now().UTC(),
	}
	if err := sink.Deliver(context.Background(), n); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if received.ThreadID != "thread-1" {
		t.Errorf("expected thread-1, got %s", received.ThreadID)
	}
	if received.StageReached != models.StageBooking {
		t.Errorf("expected stage booking, got %s", received.StageReached)
	}
}

func TestWebhookSinkRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL)
	if err := sink.Deliver(context.Background(), Notification{ThreadID: "t"}); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestSlackSinkPayloadShape(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewSlackSink(server.URL, "http://dashboard.local")
	n := Notification{
		ThreadID:     "thread-1",
		StageReached: models.StageBooking,
		BusinessType: "e-commerce",
		Budget:       "$10k",
		Summary:      "Business: e-commerce | Budget: $10k",
	}
	if err := sink.Deliver(context.Background(), n); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if payload["text"] == "" {
		t.Error("expected top-level text")
	}
	blocks, ok := payload["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array")
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks with dashboard link, got %d", len(blocks))
	}
}

func TestNewSMSSinkValidation(t *testing.T) {
	if _, err := NewSMSSink("", "", "+1555", "+1666"); err == nil {
		t.Error("expected error for missing credentials")
	}
	if _, err := NewSMSSink("sid", "token", "", ""); err == nil {
		t.Error("expected error for missing phone numbers")
	}
	if _, err := NewSMSSink("sid", "token", "+1555", "+1666"); err != nil {
		t.Errorf("expected valid sink, got error: %v", err)
	}
}
