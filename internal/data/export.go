package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wardenlabs/askwarden/internal/biz/repo"
)

const exportTimeLayout = "2006-01-02 15:04:05 MST"

// snapshotRepo renders the full audit trail into a plain-text file.
// The file is fully rewritten on every export; writing to a temp file
// and renaming keeps readers from ever observing a partial snapshot.
type snapshotRepo struct {
	audit repo.AuditRepo
	path  string
	loc   *time.Location
}

// NewSnapshotRepo creates the snapshot exporter. tz is the fixed
// timezone used when rendering timestamps.
func NewSnapshotRepo(audit repo.AuditRepo, path, tz string) (repo.SnapshotRepo, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load export timezone %q: %w", tz, err)
	}
	return &snapshotRepo{audit: audit, path: path, loc: loc}, nil
}

// Export writes the snapshot: a "Channel Logs" section and a
// "Command Logs" section, each record ordered by ID ascending.
// Exporting twice with no new records yields byte-identical output.
func (r *snapshotRepo) Export(ctx context.Context) error {
	activity, err := r.audit.ListActivity(ctx)
	if err != nil {
		return err
	}
	commands, err := r.audit.ListCommands(ctx)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("Channel Logs:\n\n")
	for _, rec := range activity {
		fmt.Fprintf(&sb, "ID: %d\n", rec.ID)
		fmt.Fprintf(&sb, "Channel: %s (%s)\n", rec.ChannelName, rec.ChannelID)
		fmt.Fprintf(&sb, "Guild: %s (%s)\n", rec.GuildName, rec.GuildID)
		fmt.Fprintf(&sb, "Author: %s (%s)\n", rec.AuthorName, rec.AuthorID)
		fmt.Fprintf(&sb, "Content: %s\n", rec.Content)
		fmt.Fprintf(&sb, "Timestamp: %s\n\n", rec.Timestamp.In(r.loc).Format(exportTimeLayout))
	}

	sb.WriteString("\n\nCommand Logs:\n\n")
	for _, rec := range commands {
		fmt.Fprintf(&sb, "ID: %d\n", rec.ID)
		fmt.Fprintf(&sb, "Guild: %s (%s)\n", rec.GuildName, rec.GuildID)
		fmt.Fprintf(&sb, "Channel: %s (%s)\n", rec.ChannelName, rec.ChannelID)
		fmt.Fprintf(&sb, "Author: %s (%s)\n", rec.AuthorName, rec.AuthorID)
		fmt.Fprintf(&sb, "Command: %s\n", rec.Command)
		fmt.Fprintf(&sb, "Timestamp: %s\n\n", rec.Timestamp.In(r.loc).Format(exportTimeLayout))
	}

	return writeFileAtomic(r.path, []byte(sb.String()))
}

// writeFileAtomic writes data to path via a temp file and rename
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp export file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace export file: %w", err)
	}
	return nil
}
