package data

import (
	"context"

	"github.com/wardenlabs/askwarden/internal/biz/domain"
	"github.com/wardenlabs/askwarden/internal/biz/repo"
	"github.com/wardenlabs/askwarden/internal/infra/openai"
)

// generatorRepo adapts the OpenAI client to the generator interface
type generatorRepo struct {
	client *openai.Client
}

// NewGeneratorRepo creates the generator adapter
func NewGeneratorRepo(client *openai.Client) repo.GeneratorRepo {
	return &generatorRepo{client: client}
}

func (r *generatorRepo) Generate(ctx context.Context, prompt, requesterID string) (string, error) {
	text, err := r.client.Generate(ctx, prompt, requesterID)
	if err != nil {
		return "", &domain.GenerationError{Err: err}
	}
	return text, nil
}
