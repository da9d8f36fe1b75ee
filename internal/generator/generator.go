// Package generator produces personalized outreach text for a categorized
// user via a chat-completion API.
package generator

import (
	"context"

	"github.com/riftfi/reactivation-backend/internal/model"
)

// Generator is the text-generation collaborator. It may fail; the batch
// runner isolates per-user failures.
type Generator interface {
	Generate(ctx context.Context, user model.CategorizedUser) (string, error)
}
