package flow

import (
	"testing"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

func TestNextStageGreetingAlwaysAdvances(t *testing.T) {
	ctx := models.Context{MessageCount: 1}
	if got := NextStage(models.StageGreeting, "hi", &ctx); got != models.StageUnderstanding {
		t.Errorf("expected understanding, got %s", got)
	}
}

func TestNextStageUnderstandingEscape(t *testing.T) {
	ctx := models.Context{MessageCount: 2}
	if got := NextStage(models.StageUnderstanding, "we sell shoes", &ctx); got != models.StageUnderstanding {
		t.Errorf("expected understanding at count 2, got %s", got)
	}

	ctx.MessageCount = 3
	if got := NextStage(models.StageUnderstanding, "we sell shoes", &ctx); got != models.StageIdentifyMVP {
		t.Errorf("expected identify_mvp at count 3, got %s", got)
	}
}

func TestNextStageIdentifyMVPPositiveSignal(t *testing.T) {
	ctx := models.Context{MessageCount: 4}
	if got := NextStage(models.StageIdentifyMVP, "That sounds GOOD to me", &ctx); got != models.StageScoping {
		t.Errorf("expected scoping on positive signal, got %s", got)
	}
}

func TestNextStageIdentifyMVPEscape(t *testing.T) {
	ctx := models.Context{MessageCount: 4}
	if got := NextStage(models.StageIdentifyMVP, "hmm not sure", &ctx); got != models.StageIdentifyMVP {
		t.Errorf("expected identify_mvp without signal below escape, got %s", got)
	}

	ctx.MessageCount = 5
	if got := NextStage(models.StageIdentifyMVP, "hmm not sure", &ctx); got != models.StageScoping {
		t.Errorf("expected scoping at count 5, got %s", got)
	}
}

func TestNextStageScopingMarksTimelineAndBudgetTogether(t *testing.T) {
	ctx := models.Context{MessageCount: 5}
	got := NextStage(models.StageScoping, "we have a $10k budget", &ctx)
	if !ctx.TimelineSeen || !ctx.BudgetSeen {
		t.Errorf("expected both flags set, got timeline=%v budget=%v", ctx.TimelineSeen, ctx.BudgetSeen)
	}
	if got != models.StageProposal {
		t.Errorf("expected proposal once both flags set, got %s", got)
	}
}

func TestNextStageScopingAccumulatesFeatures(t *testing.T) {
	ctx := models.Context{MessageCount: 5}
	got := NextStage(models.StageScoping, "we need inventory tracking", &ctx)
	if got != models.StageScoping {
		t.Errorf("expected to stay in scoping, got %s", got)
	}
	if len(ctx.Features) != 1 || ctx.Features[0] != "we need inventory tracking" {
		t.Errorf("expected feature recorded verbatim, got %v", ctx.Features)
	}
}

func TestNextStageScopingEscape(t *testing.T) {
	ctx := models.Context{MessageCount: 7}
	if got := NextStage(models.StageScoping, "still thinking", &ctx); got != models.StageProposal {
		t.Errorf("expected proposal at count 7, got %s", got)
	}
}

func TestNextStageScopingRespectsExtractedFields(t *testing.T) {
	// Raw values gathered by extraction count the same as flag sightings.
	ctx := models.Context{MessageCount: 5, Timeline: "6 weeks", Budget: "$10k"}
	if got := NextStage(models.StageScoping, "anything else?", &ctx); got != models.StageProposal {
		t.Errorf("expected proposal with extracted timeline and budget, got %s", got)
	}
}

func TestNextStageProposalPositiveSignal(t *testing.T) {
	ctx := models.Context{MessageCount: 8}
	got := NextStage(models.StageProposal, "Yes! Let's schedule a call, sounds great", &ctx)
	if got != models.StageBooking {
		t.Errorf("expected booking on positive signal, got %s", got)
	}
}

func TestNextStageProposalStaysWithoutSignal(t *testing.T) {
	ctx := models.Context{MessageCount: 8}
	if got := NextStage(models.StageProposal, "what about maintenance?", &ctx); got != models.StageProposal {
		t.Errorf("expected proposal without signal, got %s", got)
	}
}

func TestNextStageBookingIsTerminal(t *testing.T) {
	ctx := models.Context{MessageCount: 20}
	if got := NextStage(models.StageBooking, "actually, never mind", &ctx); got != models.StageBooking {
		t.Errorf("expected booking to be terminal, got %s", got)
	}
}

func TestIsNotableStage(t *testing.T) {
	notable := map[models.Stage]bool{
		models.StageGreeting:      false,
		models.StageUnderstanding: false,
		models.StageIdentifyMVP:   false,
		models.StageScoping:       false,
		models.StageProposal:      true,
		models.StageBooking:       true,
	}
	for stage, want := range notable {
		if got := IsNotableStage(stage); got != want {
			t.Errorf("IsNotableStage(%s) = %v, want %v", stage, got, want)
		}
	}
}
