// Package notify delivers stage-transition notifications to configured
// sinks and records leads when a conversation reaches booking.
package notify

import (
	"strings"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

// summaryFallback is used when no context fields have been gathered yet.
const summaryFallback = "No summary available"

// Summarize condenses gathered context into a one-line summary for
// notification payloads. Up to three fields are joined; empty fields are
// skipped.
func Summarize(ctx models.Context) string {
	var parts []string
	if ctx.BusinessType != "" {
		parts = append(parts, "Business: "+ctx.BusinessType)
	}
	if ctx.Budget != "" {
		parts = append(parts, "Budget: "+ctx.Budget)
	}
	if ctx.Timeline != "" {
		parts = append(parts, "Timeline: "+ctx.Timeline)
	}
	if len(parts) == 0 {
		return summaryFallback
	}
	return strings.Join(parts, " | ")
}
