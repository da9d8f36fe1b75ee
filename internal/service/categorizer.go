// internal/service/categorizer.go
package service

import (
	"strings"
	"time"

	"github.com/riftfi/reactivation-backend/internal/model"
)

// dormancyThresholdDays uses 24-hour days, not calendar days. The check is
// strictly greater-than: exactly 30.0 days ago is not dormant.
const dormancyThresholdDays = 30

// Categorize maps a user to exactly one lifecycle category. Total over all
// well-formed inputs; rule order is significant and must not change.
func Categorize(u model.User, now time.Time) model.Category {
	totalTxns := u.TotalTransactions()
	lastTxn := u.LastTransaction()

	if !u.KYCVerified {
		return model.CategoryNoKYC
	}
	if totalTxns == 0 {
		return model.CategoryKYCNoTransactions
	}
	if totalTxns >= 4 && lastTxn != nil && daysSince(*lastTxn, now) > dormancyThresholdDays {
		return model.CategoryDormant
	}
	if totalTxns >= 1 && totalTxns <= 3 {
		return model.CategoryKYCLowActivity
	}
	if totalTxns >= 4 {
		if u.ReferralCount > 0 {
			return model.CategoryActiveWithReferrals
		}
		return model.CategoryActiveNoReferrals
	}

	// Rules 1-5 are exhaustive for non-negative transaction counts; see the
	// exhaustiveness test. Reaching this is a logic defect.
	return model.CategoryNoKYC
}

func daysSince(t, now time.Time) float64 {
	return now.Sub(t).Hours() / 24
}

// CategorizeAll applies the rules to every user, preserving input order, and
// decorates each with first name, transaction totals and category.
func CategorizeAll(users []model.User, now time.Time) []model.CategorizedUser {
	out := make([]model.CategorizedUser, 0, len(users))
	for _, u := range users {
		out = append(out, model.CategorizedUser{
			User:      u,
			FirstName: ExtractFirstName(u.DisplayName),
			TotalTxns: u.TotalTransactions(),
			LastTxn:   u.LastTransaction(),
			Category:  Categorize(u, now),
		})
	}
	return out
}

// ExtractFirstName returns the first whitespace-delimited token of a display
// name, or "" when there is none.
func ExtractFirstName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Summarize counts users per category.
func Summarize(users []model.CategorizedUser) map[model.Category]int {
	summary := make(map[model.Category]int, len(model.AllCategories))
	for _, c := range model.AllCategories {
		summary[c] = 0
	}
	for _, u := range users {
		summary[u.Category]++
	}
	return summary
}
