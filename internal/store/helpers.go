package store

import (
	"sort"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

// sortConversationsByLastUpdated orders conversations newest-first.
func sortConversationsByLastUpdated(conversations []*models.Conversation) {
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastUpdated.After(conversations[j].LastUpdated)
	})
}

// sortLeadsByBookingTime orders leads newest-first by booking time.
func sortLeadsByBookingTime(leads []*models.Lead) {
	sort.Slice(leads, func(i, j int) bool {
		return leads[i].ReachedBookingAt.After(leads[j].ReachedBookingAt)
	})
}
