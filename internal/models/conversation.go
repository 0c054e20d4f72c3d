package models

import "time"

// Message roles for conversation history entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in the conversation history.
type Message struct {
	Role    string `json:"role"`    // "user" or "assistant"
	Content string `json:"content"` // message content
}

// Context holds the structured facts accumulated from a conversation.
//
// Timeline and Budget hold the raw sentences captured by the extractor,
// while TimelineSeen and BudgetSeen are the boolean flags set by the
// scoping-stage transition. The two sets use different trigger words and
// are deliberately kept separate; see flow.NextStage.
type Context struct {
	MessageCount int      `json:"message_count"`
	BusinessType string   `json:"business_type,omitempty"`
	Timeline     string   `json:"timeline,omitempty"`
	Budget       string   `json:"budget,omitempty"`
	TimelineSeen bool     `json:"timeline_seen,omitempty"`
	BudgetSeen   bool     `json:"budget_seen,omitempty"`
	Features     []string `json:"features,omitempty"` // accumulates raw feature requests, never deduplicated
}

// HasTimeline reports whether any timeline signal has been captured,
// either the raw sentence or the transition flag.
func (c Context) HasTimeline() bool {
	return c.TimelineSeen || c.Timeline != ""
}

// HasBudget reports whether any budget signal has been captured.
func (c Context) HasBudget() bool {
	return c.BudgetSeen || c.Budget != ""
}

// Conversation is the durable record for a single thread.
type Conversation struct {
	ThreadID    string    `json:"thread_id"`
	Stage       Stage     `json:"stage"`
	Context     Context   `json:"context"`
	History     []Message `json:"history"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewConversation creates a fresh conversation record in the greeting stage.
func NewConversation(threadID string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ThreadID:    threadID,
		Stage:       StageGreeting,
		Context:     Context{},
		History:     []Message{},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// Lead is the durable snapshot recorded when a conversation reaches booking.
// It has an independent, longer retention window than the conversation.
type Lead struct {
	ThreadID         string    `json:"thread_id"`
	BusinessType     string    `json:"business_type,omitempty"`
	Timeline         string    `json:"timeline,omitempty"`
	Budget           string    `json:"budget,omitempty"`
	Features         []string  `json:"features,omitempty"`
	Summary          string    `json:"conversation_summary"`
	TotalMessages    int       `json:"total_messages"`
	ReachedBookingAt time.Time `json:"reached_booking_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// ConversationSummary is the condensed listing form of a conversation.
type ConversationSummary struct {
	ThreadID     string    `json:"thread_id"`
	Stage        Stage     `json:"stage"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastUpdated  time.Time `json:"last_updated"`
	Summary      string    `json:"summary"`
}

// ChatRequest is the payload for POST /chat.
type ChatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

// Validate checks the chat request and fills in the default thread ID.
func (r *ChatRequest) Validate() error {
	if r.Message == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if r.ThreadID == "" {
		r.ThreadID = DefaultThreadID
	}
	return nil
}

// ChatResponse is the payload returned by POST /chat.
type ChatResponse struct {
	Response string  `json:"response"`
	ThreadID string  `json:"thread_id"`
	Stage    Stage   `json:"stage"`
	Context  Context `json:"context"`
}

// ConversationsResponse is the payload returned by GET /conversations.
type ConversationsResponse struct {
	Total         int                   `json:"total"`
	Conversations []ConversationSummary `json:"conversations"`
}

// LeadsResponse is the payload returned by GET /leads.
type LeadsResponse struct {
	Total int    `json:"total"`
	Leads []Lead `json:"leads"`
}

// ExportSummary condenses the commercially relevant facts of a thread.
type ExportSummary struct {
	BusinessType string   `json:"business_type"`
	Timeline     string   `json:"timeline"`
	Budget       string   `json:"budget"`
	Features     []string `json:"features"`
	StageReached Stage    `json:"stage_reached"`
	MessageCount int      `json:"message_count"`
}

// ExportData is the combined conversation and lead export for a thread.
type ExportData struct {
	ThreadID     string        `json:"thread_id"`
	Conversation *Conversation `json:"conversation"`
	Lead         *Lead         `json:"lead_info,omitempty"`
	ExportedAt   time.Time     `json:"exported_at"`
	Summary      ExportSummary `json:"summary"`
}

// HealthResponse is the payload returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Features  []string  `json:"features"`
}
