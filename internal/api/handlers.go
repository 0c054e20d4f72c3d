package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
	"github.com/Instabidsai/instabids-sales-bot-api/internal/notify"
)

// rootHandler lists the available endpoints.
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"message": "Sales Bot API is running",
		"endpoints": []string{
			"/health",
			"/chat",
			"/reset/{thread_id}",
			"/conversations",
			"/leads",
			"/conversation/{thread_id}",
			"/export/{thread_id}",
		},
	})
}

// chatHandler processes one conversation turn.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chatHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err, "threadID", req.ThreadID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	result := s.engine.ProcessTurn(r.Context(), req.ThreadID, req.Message)

	writeJSONResponse(w, http.StatusOK, models.ChatResponse{
		Response: result.Response,
		ThreadID: req.ThreadID,
		Stage:    result.Stage,
		Context:  result.Context,
	})
}

// resetHandler deletes the conversation state for a thread.
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	threadID := strings.TrimPrefix(r.URL.Path, "/reset/")
	if threadID == "" || strings.Contains(threadID, "/") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing thread ID"))
		return
	}

	if err := s.engine.Reset(r.Context(), threadID); err != nil {
		slog.Error("Server.resetHandler: reset failed", "error", err, "threadID", threadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reset conversation"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation "+threadID+" reset successfully", nil))
}

// conversationsHandler lists all live conversations, newest-first.
func (s *Server) conversationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	conversations, err := s.st.ListConversations(r.Context())
	if err != nil {
		slog.Error("Server.conversationsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list conversations"))
		return
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summaries = append(summaries, models.ConversationSummary{
			ThreadID:     conv.ThreadID,
			Stage:        conv.Stage,
			MessageCount: conv.Context.MessageCount,
			CreatedAt:    conv.CreatedAt,
			LastUpdated:  conv.LastUpdated,
			Summary:      notify.Summarize(conv.Context),
		})
	}
	writeJSONResponse(w, http.StatusOK, models.ConversationsResponse{
		Total:         len(summaries),
		Conversations: summaries,
	})
}

// leadsHandler lists all recorded leads, newest-first.
func (s *Server) leadsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	leads, err := s.st.ListLeads(r.Context())
	if err != nil {
		slog.Error("Server.leadsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list leads"))
		return
	}

	out := make([]models.Lead, 0, len(leads))
	for _, lead := range leads {
		out = append(out, *lead)
	}
	writeJSONResponse(w, http.StatusOK, models.LeadsResponse{
		Total: len(out),
		Leads: out,
	})
}

// conversationHandler returns the full record for one thread.
func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	threadID := strings.TrimPrefix(r.URL.Path, "/conversation/")
	if threadID == "" || strings.Contains(threadID, "/") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing thread ID"))
		return
	}

	conv, err := s.st.GetConversation(r.Context(), threadID)
	if err != nil {
		slog.Error("Server.conversationHandler: lookup failed", "error", err, "threadID", threadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if conv == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, conv)
}

// exportHandler combines the conversation record, any lead record, and a
// condensed summary into a single export document.
func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	threadID := strings.TrimPrefix(r.URL.Path, "/export/")
	if threadID == "" || strings.Contains(threadID, "/") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing thread ID"))
		return
	}

	conv, err := s.st.GetConversation(r.Context(), threadID)
	if err != nil {
		slog.Error("Server.exportHandler: conversation lookup failed", "error", err, "threadID", threadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if conv == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}

	lead, err := s.st.GetLead(r.Context(), threadID)
	if err != nil {
		slog.Warn("Server.exportHandler: lead lookup failed", "error", err, "threadID", threadID)
		lead = nil
	}

	writeJSONResponse(w, http.StatusOK, models.ExportData{
		ThreadID:     threadID,
		Conversation: conv,
		Lead:         lead,
		ExportedAt:   time.Now().UTC(),
		Summary: models.ExportSummary{
			BusinessType: valueOr(conv.Context.BusinessType, "unknown"),
			Timeline:     valueOr(conv.Context.Timeline, "not specified"),
			Budget:       valueOr(conv.Context.Budget, "not specified"),
			Features:     conv.Context.Features,
			StageReached: conv.Stage,
			MessageCount: len(conv.History),
		},
	})
}

// healthHandler reports service liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Features:  []string{"persistence", "notifications", "lead-tracking"},
	})
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
