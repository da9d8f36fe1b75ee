package generator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/riftfi/reactivation-backend/internal/model"
)

func TestBuildUserPromptIncludesUserContext(t *testing.T) {
	last := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
	user := model.CategorizedUser{
		User: model.User{
			ID:                  "u1",
			OnrampCount:         3,
			OfframpCount:        2,
			OnrampVolume:        decimal.NewFromInt(1000),
			OfframpVolume:       decimal.NewFromFloat(250.5),
			ReferralCount:       4,
			ReferralEarningsKES: decimal.NewFromFloat(99.9),
		},
		FirstName: "Amina",
		TotalTxns: 5,
		LastTxn:   &last,
		Category:  model.CategoryActiveWithReferrals,
	}

	prompt := buildUserPrompt(user)
	assert.Contains(t, prompt, "Name: Amina")
	assert.Contains(t, prompt, "Category: ACTIVE_WITH_REFERRALS")
	assert.Contains(t, prompt, "Transactions: 5 (3 deposits, 2 withdrawals)")
	assert.Contains(t, prompt, "Total volume: KES 1250.50")
	assert.Contains(t, prompt, "Last active: Apr 20, 2025")
	assert.Contains(t, prompt, "Referrals: 4")
	assert.Contains(t, prompt, "Referral earnings: KES 99.90")
	assert.Contains(t, prompt, categoryInstructions[model.CategoryActiveWithReferrals])
}

func TestBuildUserPromptFallbacks(t *testing.T) {
	user := model.CategorizedUser{
		Category: model.CategoryNoKYC,
	}
	prompt := buildUserPrompt(user)
	assert.Contains(t, prompt, "Name: there")
	assert.Contains(t, prompt, "Last active: Never")
}

func TestEveryCategoryHasInstructions(t *testing.T) {
	for _, cat := range model.AllCategories {
		assert.NotEmpty(t, categoryInstructions[cat], "category %s", cat)
	}
}
