package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/store"
)

// sinkTimeout bounds each sink delivery attempt.
const sinkTimeout = 10 * time.Second

// Notification is the payload delivered to sinks when a conversation
// enters a notable stage.
type Notification struct {
	ThreadID      string       `json:"thread_id"`
	Timestamp     time.Time    `json:"timestamp"`
	StageReached  models.Stage `json:"stage_reached"`
	BusinessType  string       `json:"business_type"`
	Timeline      string       `json:"timeline"`
	Budget        string       `json:"budget"`
	Features      []string     `json:"features"`
	Summary       string       `json:"conversation_summary"`
	TotalMessages int          `json:"total_messages"`
}

// Sink is a single notification destination. Deliver failures are logged
// by the dispatcher and never propagate further.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// Dispatcher fans a notification out to all configured sinks and records
// leads on booking. It is safe for concurrent use and never returns
// errors to the caller.
type Dispatcher struct {
	store   store.Store
	sinks   []Sink
	leadTTL time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSink appends a delivery sink.
func WithSink(s Sink) DispatcherOption {
	return func(d *Dispatcher) { d.sinks = append(d.sinks, s) }
}

// WithLeadTTL overrides the lead retention window.
func WithLeadTTL(ttl time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.leadTTL = ttl }
}

// NewDispatcher creates a dispatcher writing leads to the given store.
func NewDispatcher(st store.Store, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:   st,
		leadTTL: store.DefaultLeadTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// StageReached handles a notable stage transition. On booking it records
// the lead first (idempotent per thread), then delivers to all sinks
// concurrently. Every failure stays local: it is logged and the turn
// proceeds.
func (d *Dispatcher) StageReached(ctx context.Context, conv *models.Conversation, stage models.Stage) {
	notification := Notification{
		ThreadID:      conv.ThreadID,
		Timestamp:     time.Now().UTC(),
		StageReached:  stage,
		BusinessType:  conv.Context.BusinessType,
		Timeline:      conv.Context.Timeline,
		Budget:        conv.Context.Budget,
		Features:      conv.Context.Features,
		Summary:       Summarize(conv.Context),
		TotalMessages: len(conv.History),
	}

	if stage == models.StageBooking {
		d.recordLead(ctx, conv, notification)
	}

	var wg sync.WaitGroup
	for _, sink := range d.sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()
			deliveryCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
			defer cancel()
			if err := s.Deliver(deliveryCtx, notification); err != nil {
				slog.Error("Dispatcher.StageReached: sink delivery failed",
					"sink", s.Name(), "error", err, "threadID", conv.ThreadID, "stage", stage)
				return
			}
			slog.Info("Dispatcher.StageReached: notification delivered",
				"sink", s.Name(), "threadID", conv.ThreadID, "stage", stage)
		}(sink)
	}
	wg.Wait()
}

// recordLead writes the lead record once per thread. Re-entering booking
// later must not create a duplicate, so an existing live lead wins.
func (d *Dispatcher) recordLead(ctx context.Context, conv *models.Conversation, n Notification) {
	storeCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()

	existing, err := d.store.GetLead(storeCtx, conv.ThreadID)
	if err != nil {
		slog.Error("Dispatcher.recordLead: lead lookup failed", "error", err, "threadID", conv.ThreadID)
		return
	}
	if existing != nil {
		slog.Debug("Dispatcher.recordLead: lead already recorded", "threadID", conv.ThreadID)
		return
	}

	lead := &models.Lead{
		ThreadID:         conv.ThreadID,
		BusinessType:     conv.Context.BusinessType,
		Timeline:         conv.Context.Timeline,
		Budget:           conv.Context.Budget,
		Features:         conv.Context.Features,
		Summary:          n.Summary,
		TotalMessages:    n.TotalMessages,
		ReachedBookingAt: n.Timestamp,
		CreatedAt:        time.Now().UTC(),
	}
	if err := d.store.SaveLead(storeCtx, lead, d.leadTTL); err != nil {
		slog.Error("Dispatcher.recordLead: failed to save lead", "error", err, "threadID", conv.ThreadID)
		return
	}
	slog.Info("Dispatcher.recordLead: hot lead recorded", "threadID", conv.ThreadID)
}
