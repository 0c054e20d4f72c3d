// Package models defines the core data structures for the sales bot API.
//
// It includes the funnel stage enumeration, conversation and lead records,
// and the API response envelopes shared across modules.
package models

import (
	"errors"
	"strings"
)

// Stage represents one discrete phase of the sales funnel state machine.
type Stage string

const (
	// StageGreeting is the entry stage for every new conversation.
	StageGreeting Stage = "greeting"
	// StageUnderstanding gathers information about the prospect's business.
	StageUnderstanding Stage = "understanding"
	// StageIdentifyMVP proposes a concrete MVP idea to the prospect.
	StageIdentifyMVP Stage = "identify_mvp"
	// StageScoping collects features, timeline, and budget details.
	StageScoping Stage = "scoping"
	// StageProposal presents a brief MVP proposal.
	StageProposal Stage = "proposal"
	// StageBooking invites the prospect to book a strategy call. Terminal.
	StageBooking Stage = "booking"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for an incoming chat message
	MaxMessageLength = 4096
	// DefaultThreadID is used when a chat request does not carry a thread identifier
	DefaultThreadID = "default"
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrEmptyThreadID  = errors.New("thread_id cannot be empty")
	// ErrCorruptRecord signals a stored conversation that could not be decoded.
	// The engine falls back to a fresh record instead of failing the turn.
	ErrCorruptRecord = errors.New("stored conversation record is corrupt")
)

// IsValidStage checks if the given stage is one of the six funnel stages.
func IsValidStage(s Stage) bool {
	switch s {
	case StageGreeting, StageUnderstanding, StageIdentifyMVP, StageScoping, StageProposal, StageBooking:
		return true
	default:
		return false
	}
}

// ParseStage maps a stored stage string onto a funnel stage.
// Unknown or missing values default to greeting so a damaged record
// restarts the funnel instead of failing the turn.
func ParseStage(s string) Stage {
	stage := Stage(strings.TrimSpace(s))
	if !IsValidStage(stage) {
		return StageGreeting
	}
	return stage
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
