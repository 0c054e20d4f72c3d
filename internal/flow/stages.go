// Package flow implements the conversation lifecycle: the funnel stage
// state machine, context extraction from user messages, stage prompt
// construction, and the engine that orchestrates a single turn.
package flow

import (
	"strings"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

// Escape thresholds keep conversations from stalling in a stage when the
// positive-signal heuristics never fire.
const (
	understandingEscapeCount = 3
	identifyMVPEscapeCount   = 5
	scopingEscapeCount       = 7
)

// mvpInterestSignals advance identify_mvp to scoping when any appears as a
// substring of the lowercased user message.
var mvpInterestSignals = []string{
	"yes", "sounds good", "interested", "tell me more", "like that", "perfect", "great", "need",
}

// proposalInterestSignals advance proposal to booking.
var proposalInterestSignals = []string{
	"sounds good", "interested", "yes", "let's", "schedule", "love", "great", "discuss",
}

// NextStage computes the stage the conversation should move to after the
// given user message. It is deterministic and monotone: stages only move
// forward, and booking is terminal.
//
// The scoping case mutates ctx: it marks timeline/budget as seen and
// accumulates feature mentions while deciding whether to advance. These
// triggers intentionally differ from the ones in ExtractContext ("week"
// here vs "weeks" there, no "month" here), so both heuristics run on each
// scoping turn.
func NextStage(current models.Stage, userMessage string, ctx *models.Context) models.Stage {
	lower := strings.ToLower(userMessage)

	switch current {
	case models.StageGreeting:
		return models.StageUnderstanding

	case models.StageUnderstanding:
		if ctx.MessageCount >= understandingEscapeCount {
			return models.StageIdentifyMVP
		}
		return models.StageUnderstanding

	case models.StageIdentifyMVP:
		if containsAny(lower, mvpInterestSignals) {
			return models.StageScoping
		}
		if ctx.MessageCount >= identifyMVPEscapeCount {
			return models.StageScoping
		}
		return models.StageIdentifyMVP

	case models.StageScoping:
		if strings.Contains(lower, "week") || strings.Contains(lower, "budget") || strings.Contains(lower, "$") {
			ctx.TimelineSeen = true
			ctx.BudgetSeen = true
		}
		if strings.Contains(lower, "feature") || strings.Contains(lower, "need") || strings.Contains(lower, "tracking") {
			ctx.Features = append(ctx.Features, userMessage)
		}
		if ctx.HasTimeline() && ctx.HasBudget() {
			return models.StageProposal
		}
		if ctx.MessageCount >= scopingEscapeCount {
			return models.StageProposal
		}
		return models.StageScoping

	case models.StageProposal:
		if containsAny(lower, proposalInterestSignals) {
			return models.StageBooking
		}
		return models.StageProposal

	case models.StageBooking:
		return models.StageBooking
	}

	return current
}

// IsNotableStage reports whether entering the stage should trigger
// notification fan-out.
func IsNotableStage(stage models.Stage) bool {
	return stage == models.StageProposal || stage == models.StageBooking
}

func containsAny(lower string, signals []string) bool {
	for _, signal := range signals {
		if strings.Contains(lower, signal) {
			return true
		}
	}
	return false
}
