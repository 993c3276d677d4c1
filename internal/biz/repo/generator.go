package repo

import "context"

// GeneratorRepo is the reply-generation interface.
// Failures surface as *domain.GenerationError.
type GeneratorRepo interface {
	// Generate produces reply text for a prompt on behalf of a requester
	Generate(ctx context.Context, prompt, requesterID string) (string, error)
}
