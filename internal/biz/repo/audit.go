package repo

import (
	"context"

	"github.com/wardenlabs/askwarden/internal/biz/domain"
)

// AuditRepo is the append-only audit persistence interface (SQLite).
// Record failures surface as *domain.PersistenceError and must be
// propagated by callers; the audit trail is load-bearing.
type AuditRepo interface {
	// RecordActivity appends a channel activity record, returning its ID
	RecordActivity(ctx context.Context, rec *domain.ActivityRecord) (int64, error)

	// RecordCommand appends a command invocation record, returning its ID
	RecordCommand(ctx context.Context, rec *domain.CommandRecord) (int64, error)

	// ListActivity returns all activity records ordered by ID ascending
	ListActivity(ctx context.Context) ([]domain.ActivityRecord, error)

	// ListCommands returns all command records ordered by ID ascending
	ListCommands(ctx context.Context) ([]domain.CommandRecord, error)

	// Close closes the underlying database connection
	Close() error
}

// SnapshotRepo renders the full audit trail to the export file.
// Export failures are logged by callers but never abort the
// triggering operation.
type SnapshotRepo interface {
	Export(ctx context.Context) error
}
