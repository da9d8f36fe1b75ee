// internal/service/picker.go
package service

import (
	"github.com/riftfi/reactivation-backend/internal/model"
	"github.com/riftfi/reactivation-backend/internal/store"
)

// Pick is the segment selected for one batch: a category and its full
// unsent user list. Capping to the daily limit happens in the batch runner.
type Pick struct {
	Category model.Category
	Users    []model.CategorizedUser
}

// PickCategory scans the fixed priority order and returns the first
// category that still has users without a tracker entry. Returns nil only
// when every user in every category has been messaged: the
// campaign-complete signal.
func PickCategory(users []model.CategorizedUser, tracker *store.SentTracker) *Pick {
	for _, cat := range model.CategoryPriority {
		var unsent []model.CategorizedUser
		for _, u := range users {
			if u.Category == cat && !tracker.Contains(u.ID) {
				unsent = append(unsent, u)
			}
		}
		if len(unsent) > 0 {
			return &Pick{Category: cat, Users: unsent}
		}
	}
	return nil
}

// Breakdown reports per-category campaign progress against the tracker.
func Breakdown(users []model.CategorizedUser, tracker *store.SentTracker) map[model.Category]model.CategoryBreakdown {
	out := make(map[model.Category]model.CategoryBreakdown, len(model.AllCategories))
	for _, cat := range model.AllCategories {
		var total, remaining int
		for _, u := range users {
			if u.Category != cat {
				continue
			}
			total++
			if !tracker.Contains(u.ID) {
				remaining++
			}
		}
		out[cat] = model.CategoryBreakdown{
			Total:     total,
			Sent:      total - remaining,
			Remaining: remaining,
		}
	}
	return out
}
