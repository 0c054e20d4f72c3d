package flow

import (
	"strings"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

// ExtractContext populates structured context fields from a user message.
// It runs against the stage the conversation is in when the message
// arrives, before any transition. The returned context is a modified copy;
// the input is not mutated.
func ExtractContext(stage models.Stage, userMessage string, ctx models.Context) models.Context {
	lower := strings.ToLower(userMessage)

	switch stage {
	case models.StageUnderstanding:
		// Later matches win so a message mentioning both lands on SaaS.
		if strings.Contains(lower, "e-commerce") || strings.Contains(lower, "online store") {
			ctx.BusinessType = "e-commerce"
		}
		if strings.Contains(lower, "saas") || strings.Contains(lower, "software") {
			ctx.BusinessType = "SaaS"
		}

	case models.StageScoping:
		if strings.Contains(lower, "weeks") || strings.Contains(lower, "month") {
			ctx.Timeline = userMessage
		}
		if strings.Contains(userMessage, "$") || strings.Contains(lower, "budget") {
			ctx.Budget = userMessage
		}
		if strings.Contains(lower, "need") || strings.Contains(lower, "feature") ||
			strings.Contains(lower, "want") || strings.Contains(lower, "require") {
			ctx.Features = append(append([]string(nil), ctx.Features...), userMessage)
		}
	}

	return ctx
}
