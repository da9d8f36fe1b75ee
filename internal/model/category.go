// internal/model/category.go
package model

// Category is a user lifecycle segment. Every user maps to exactly one.
type Category string

const (
	CategoryNoKYC               Category = "NO_KYC"
	CategoryKYCNoTransactions   Category = "KYC_NO_TRANSACTIONS"
	CategoryKYCLowActivity      Category = "KYC_LOW_ACTIVITY"
	CategoryActiveNoReferrals   Category = "ACTIVE_NO_REFERRALS"
	CategoryActiveWithReferrals Category = "ACTIVE_WITH_REFERRALS"
	CategoryDormant             Category = "DORMANT"
)

// AllCategories lists every category, in enumeration order.
var AllCategories = []Category{
	CategoryNoKYC,
	CategoryKYCNoTransactions,
	CategoryKYCLowActivity,
	CategoryActiveNoReferrals,
	CategoryActiveWithReferrals,
	CategoryDormant,
}

// CategoryPriority is the campaign rotation order: reactivation segments
// first, already-engaged segments last. Must stay an ordered slice — the
// picker does a linear scan over it.
var CategoryPriority = []Category{
	CategoryDormant,
	CategoryKYCNoTransactions,
	CategoryKYCLowActivity,
	CategoryActiveNoReferrals,
	CategoryActiveWithReferrals,
	CategoryNoKYC,
}

// ValidCategory reports whether s names a known category.
func ValidCategory(s string) bool {
	for _, c := range AllCategories {
		if string(c) == s {
			return true
		}
	}
	return false
}
