package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wardenlabs/askwarden/internal/biz/domain"
	"github.com/wardenlabs/askwarden/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// auditRepo implements the audit repository over SQLite.
// The store is append-only: records are never updated or deleted.
type auditRepo struct {
	db *sql.DB
}

// NewAuditRepo opens (or creates) the audit database
func NewAuditRepo(dbPath string) (repo.AuditRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Serialize writers; concurrent lifecycle tasks queue on the
	// single connection rather than race.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS channel_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id TEXT NOT NULL,
			channel_name TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			guild_name TEXT NOT NULL,
			author_id TEXT NOT NULL,
			author_name TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create channel_logs table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS command_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			guild_name TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			channel_name TEXT NOT NULL,
			author_id TEXT NOT NULL,
			author_name TEXT NOT NULL,
			command TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create command_logs table: %w", err)
	}

	return &auditRepo{db: db}, nil
}

// RecordActivity appends a channel activity record
func (r *auditRepo) RecordActivity(ctx context.Context, rec *domain.ActivityRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO channel_logs (
			channel_id, channel_name, guild_id, guild_name,
			author_id, author_name, content, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ChannelID, rec.ChannelName,
		rec.GuildID, rec.GuildName,
		rec.AuthorID, rec.AuthorName,
		rec.Content, rec.Timestamp.Unix(),
	)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "record activity", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &domain.PersistenceError{Op: "record activity id", Err: err}
	}
	rec.ID = id
	return id, nil
}

// RecordCommand appends a command invocation record
func (r *auditRepo) RecordCommand(ctx context.Context, rec *domain.CommandRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO command_logs (
			guild_id, guild_name, channel_id, channel_name,
			author_id, author_name, command, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.GuildID, rec.GuildName,
		rec.ChannelID, rec.ChannelName,
		rec.AuthorID, rec.AuthorName,
		rec.Command, rec.Timestamp.Unix(),
	)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "record command", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &domain.PersistenceError{Op: "record command id", Err: err}
	}
	rec.ID = id
	return id, nil
}

// ListActivity returns all activity records ordered by ID ascending
func (r *auditRepo) ListActivity(ctx context.Context) ([]domain.ActivityRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, channel_id, channel_name, guild_id, guild_name,
		       author_id, author_name, content, timestamp
		FROM channel_logs
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list activity", Err: err}
	}
	defer rows.Close()

	var records []domain.ActivityRecord
	for rows.Next() {
		var rec domain.ActivityRecord
		var ts int64
		if err := rows.Scan(
			&rec.ID, &rec.ChannelID, &rec.ChannelName,
			&rec.GuildID, &rec.GuildName,
			&rec.AuthorID, &rec.AuthorName,
			&rec.Content, &ts,
		); err != nil {
			return nil, &domain.PersistenceError{Op: "scan activity", Err: err}
		}
		rec.Timestamp = time.Unix(ts, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list activity", Err: err}
	}

	return records, nil
}

// ListCommands returns all command records ordered by ID ascending
func (r *auditRepo) ListCommands(ctx context.Context) ([]domain.CommandRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, guild_id, guild_name, channel_id, channel_name,
		       author_id, author_name, command, timestamp
		FROM command_logs
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list commands", Err: err}
	}
	defer rows.Close()

	var records []domain.CommandRecord
	for rows.Next() {
		var rec domain.CommandRecord
		var ts int64
		if err := rows.Scan(
			&rec.ID, &rec.GuildID, &rec.GuildName,
			&rec.ChannelID, &rec.ChannelName,
			&rec.AuthorID, &rec.AuthorName,
			&rec.Command, &ts,
		); err != nil {
			return nil, &domain.PersistenceError{Op: "scan command", Err: err}
		}
		rec.Timestamp = time.Unix(ts, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list commands", Err: err}
	}

	return records, nil
}

// Close closes the database connection
func (r *auditRepo) Close() error {
	return r.db.Close()
}
