package flow

import (
	"strings"
	"testing"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

func TestExtractContextBusinessType(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"e-commerce keyword", "I run an E-Commerce shop", "e-commerce"},
		{"online store keyword", "we have an online store", "e-commerce"},
		{"saas keyword", "it's a SaaS product", "SaaS"},
		{"software keyword", "we build software for dentists", "SaaS"},
		{"both keywords favors saas", "an online store plus some software tools", "SaaS"},
		{"no keyword", "we sell handmade furniture", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractContext(models.StageUnderstanding, tt.message, models.Context{})
			if got.BusinessType != tt.want {
				t.Errorf("BusinessType = %q, want %q", got.BusinessType, tt.want)
			}
		})
	}
}

func TestExtractContextScopingFields(t *testing.T) {
	msg := "we need it in 6 weeks, budget is $10k"
	got := ExtractContext(models.StageScoping, msg, models.Context{})

	if got.Timeline != msg {
		t.Errorf("expected timeline set to the raw message, got %q", got.Timeline)
	}
	if got.Budget != msg {
		t.Errorf("expected budget set to the raw message, got %q", got.Budget)
	}
	if len(got.Features) != 1 || got.Features[0] != msg {
		t.Errorf("expected feature appended for 'need', got %v", got.Features)
	}
}

func TestExtractContextScopingFeatureAccumulation(t *testing.T) {
	ctx := models.Context{Features: []string{"we need user accounts"}}
	got := ExtractContext(models.StageScoping, "we also want analytics", ctx)

	if len(got.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(got.Features))
	}
	if got.Features[1] != "we also want analytics" {
		t.Errorf("expected new feature appended, got %v", got.Features)
	}
	if len(ctx.Features) != 1 {
		t.Errorf("input context mutated: %v", ctx.Features)
	}
}

func TestExtractContextIgnoresOtherStages(t *testing.T) {
	for _, stage := range []models.Stage{
		models.StageGreeting,
		models.StageIdentifyMVP,
		models.StageProposal,
		models.StageBooking,
	} {
		got := ExtractContext(stage, "SaaS with a $10k budget in 6 weeks, we need reports", models.Context{})
		if got.BusinessType != "" || got.Timeline != "" || got.Budget != "" || len(got.Features) != 0 {
			t.Errorf("stage %s: expected no extraction, got %+v", stage, got)
		}
	}
}

func TestBuildStageDirectiveIncludesContext(t *testing.T) {
	ctx := models.Context{MessageCount: 4, BusinessType: "SaaS"}
	directive := BuildStageDirective(models.StageScoping, ctx)

	if !strings.Contains(directive, "SCOPING") {
		t.Error("expected scoping directive section")
	}
	if !strings.Contains(directive, "SaaS") {
		t.Error("expected serialized context in directive")
	}
	if !strings.Contains(directive, "Don't mention the stage names") {
		t.Error("expected base rules in directive")
	}
}

func TestBuildStageDirectiveBookingHasCalendlyLink(t *testing.T) {
	directive := BuildStageDirective(models.StageBooking, models.Context{})
	if !strings.Contains(directive, "calendly.com") {
		t.Error("expected booking directive to include scheduling link")
	}
}
