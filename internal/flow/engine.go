package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openai/openai-go"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/genai"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/store"
)

// ApologyReply is returned to the end user whenever a turn fails
// internally. Operational detail is never surfaced past this string.
const ApologyReply = "I apologize, but I encountered an error. Could you please try again?"

// historyWindow bounds how many prior messages are replayed to the
// generation collaborator each turn.
const historyWindow = 6

const (
	defaultStoreTimeout      = 5 * time.Second
	defaultGenerationTimeout = 30 * time.Second
)

// Notifier receives stage-transition events. Implementations must not
// return errors to the engine; delivery failures stay local.
type Notifier interface {
	StageReached(ctx context.Context, conv *models.Conversation, stage models.Stage)
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	Response string
	Stage    models.Stage
	Context  models.Context
}

// Engine orchestrates a single conversation turn: load, extract,
// transition, notify, generate, persist. Turns for the same thread are
// serialized with a per-thread lock held for the whole turn; turns for
// different threads run independently.
type Engine struct {
	store       store.Store
	genaiClient genai.ClientInterface
	notifier    Notifier

	conversationTTL   time.Duration
	storeTimeout      time.Duration
	generationTimeout time.Duration

	mu          sync.Mutex
	threadLocks map[string]*threadLock
}

// threadLock serializes turns for one thread. The reference count tracks
// waiters so idle entries can be evicted; client-supplied thread IDs would
// otherwise grow the lock map without bound.
type threadLock struct {
	mu   sync.Mutex
	refs int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNotifier sets the dispatcher invoked on notable stage transitions.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithConversationTTL overrides the retention window applied on save.
func WithConversationTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.conversationTTL = ttl }
}

// WithStoreTimeout overrides the per-operation store timeout.
func WithStoreTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.storeTimeout = d }
}

// WithGenerationTimeout overrides the generation collaborator timeout.
func WithGenerationTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.generationTimeout = d }
}

// NewEngine creates an engine backed by the given store and generation
// client.
func NewEngine(st store.Store, genaiClient genai.ClientInterface, opts ...EngineOption) *Engine {
	e := &Engine{
		store:             st,
		genaiClient:       genaiClient,
		conversationTTL:   store.DefaultConversationTTL,
		storeTimeout:      defaultStoreTimeout,
		generationTimeout: defaultGenerationTimeout,
		threadLocks:       make(map[string]*threadLock),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessTurn runs one turn for a thread. It never returns an error to the
// caller: any internal failure is logged and mapped to the apology reply,
// and a failed turn persists nothing.
func (e *Engine) ProcessTurn(ctx context.Context, threadID, message string) *TurnResult {
	lock := e.lockThread(threadID)
	defer e.unlockThread(threadID, lock)

	conv, err := e.loadConversation(ctx, threadID)
	if err != nil {
		slog.Error("Engine.ProcessTurn: failed to load conversation", "error", err, "threadID", threadID)
		return &TurnResult{Response: ApologyReply, Stage: models.StageGreeting}
	}

	priorStage := conv.Stage
	priorContext := conv.Context

	conv.Context.MessageCount++
	conv.Context = ExtractContext(conv.Stage, message, conv.Context)
	nextStage := NextStage(conv.Stage, message, &conv.Context)

	// Dispatch sees the updated context but the record's stage field is
	// still the prior stage; the target stage travels separately.
	if nextStage != priorStage && IsNotableStage(nextStage) && e.notifier != nil {
		e.notifier.StageReached(ctx, conv, nextStage)
	}

	directive := BuildStageDirective(nextStage, conv.Context)
	messages := buildGenerationMessages(directive, conv.History, message)

	genCtx, cancel := context.WithTimeout(ctx, e.generationTimeout)
	reply, err := e.genaiClient.GenerateWithMessages(genCtx, messages)
	cancel()
	if err != nil {
		slog.Error("Engine.ProcessTurn: generation failed", "error", err, "threadID", threadID, "stage", nextStage)
		return &TurnResult{Response: ApologyReply, Stage: priorStage, Context: priorContext}
	}

	conv.History = append(conv.History,
		models.Message{Role: models.RoleUser, Content: message},
		models.Message{Role: models.RoleAssistant, Content: reply},
	)
	conv.Stage = nextStage
	conv.LastUpdated = time.Now().UTC()

	saveCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	err = e.store.SaveConversation(saveCtx, conv, e.conversationTTL)
	cancel()
	if err != nil {
		slog.Error("Engine.ProcessTurn: failed to save conversation", "error", err, "threadID", threadID)
		return &TurnResult{Response: ApologyReply, Stage: priorStage, Context: priorContext}
	}

	slog.Debug("Engine.ProcessTurn: turn complete", "threadID", threadID, "stage", conv.Stage, "messageCount", conv.Context.MessageCount)
	return &TurnResult{Response: reply, Stage: conv.Stage, Context: conv.Context}
}

// Reset deletes the conversation record for a thread. Lead records are
// retained independently.
func (e *Engine) Reset(ctx context.Context, threadID string) error {
	lock := e.lockThread(threadID)
	defer e.unlockThread(threadID, lock)

	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.store.DeleteConversation(storeCtx, threadID); err != nil {
		return fmt.Errorf("failed to reset conversation %s: %w", threadID, err)
	}
	slog.Info("Engine.Reset: conversation reset", "threadID", threadID)
	return nil
}

// loadConversation fetches the record for a thread, creating a fresh one
// when none exists or the stored record is corrupt.
func (e *Engine) loadConversation(ctx context.Context, threadID string) (*models.Conversation, error) {
	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	conv, err := e.store.GetConversation(storeCtx, threadID)
	if errors.Is(err, models.ErrCorruptRecord) {
		slog.Warn("Engine.loadConversation: corrupt record, starting fresh", "threadID", threadID)
		return models.NewConversation(threadID), nil
	}
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return models.NewConversation(threadID), nil
	}
	// A record can decode cleanly but carry a stage outside the enum, for
	// example after a rollback. Normalize so the thread cannot wedge there.
	if !models.IsValidStage(conv.Stage) {
		slog.Warn("Engine.loadConversation: unknown stage, defaulting to greeting", "threadID", threadID, "stage", conv.Stage)
		conv.Stage = models.ParseStage(string(conv.Stage))
	}
	return conv, nil
}

// buildGenerationMessages assembles the LLM input: system directive, the
// most recent prior turns, then the current user message.
func buildGenerationMessages(directive string, history []models.Message, userMessage string) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(directive),
	}

	start := 0
	if len(history) > historyWindow {
		start = len(history) - historyWindow
	}
	for _, msg := range history[start:] {
		if msg.Role == models.RoleUser {
			messages = append(messages, openai.UserMessage(msg.Content))
		} else {
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	return append(messages, openai.UserMessage(userMessage))
}

// lockThread acquires the per-thread lock, creating it on first use.
func (e *Engine) lockThread(threadID string) *threadLock {
	e.mu.Lock()
	lock, ok := e.threadLocks[threadID]
	if !ok {
		lock = &threadLock{}
		e.threadLocks[threadID] = lock
	}
	lock.refs++
	e.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// unlockThread releases the per-thread lock and evicts the map entry once
// no turn holds or waits on it.
func (e *Engine) unlockThread(threadID string, lock *threadLock) {
	lock.mu.Unlock()

	e.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(e.threadLocks, threadID)
	}
	e.mu.Unlock()
}
