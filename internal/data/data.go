package data

import (
	"github.com/wardenlabs/askwarden/internal/biz/domain"
	"github.com/wardenlabs/askwarden/internal/biz/repo"
	"github.com/wardenlabs/askwarden/internal/infra/lark"
	"github.com/wardenlabs/askwarden/internal/infra/openai"
)

// Repositories contains all repositories
type Repositories struct {
	Chat      repo.ChatRepo
	Audit     repo.AuditRepo
	Snapshot  repo.SnapshotRepo
	Generator repo.GeneratorRepo
}

// NewRepositories creates all repositories
func NewRepositories(
	larkClient *lark.Client,
	genClient *openai.Client,
	auditDBPath string,
	exportPath string,
	exportTZ string,
	guild domain.Guild,
	roleAssignments map[string][]string,
) (*Repositories, error) {
	auditRepo, err := NewAuditRepo(auditDBPath)
	if err != nil {
		return nil, err
	}

	snapshotRepo, err := NewSnapshotRepo(auditRepo, exportPath, exportTZ)
	if err != nil {
		auditRepo.Close()
		return nil, err
	}

	return &Repositories{
		Chat:      NewChatRepo(larkClient, guild, roleAssignments),
		Audit:     auditRepo,
		Snapshot:  snapshotRepo,
		Generator: NewGeneratorRepo(genClient),
	}, nil
}
