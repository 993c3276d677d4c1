package domain

import "time"

// ActivityRecord is an append-only audit entry for channel activity.
// One is written for every inbound message and every bot-authored
// notice or reply. Records are never mutated or deleted.
type ActivityRecord struct {
	ID          int64 // assigned by the store
	ChannelID   string
	ChannelName string
	GuildID     string
	GuildName   string
	AuthorID    string
	AuthorName  string
	Content     string
	Timestamp   time.Time
}

// CommandRecord is an append-only audit entry for a command invocation
type CommandRecord struct {
	ID          int64
	GuildID     string
	GuildName   string
	ChannelID   string
	ChannelName string
	AuthorID    string
	AuthorName  string
	Command     string
	Timestamp   time.Time
}

// DeletionKind classifies a scheduled deletion
type DeletionKind int

const (
	// DeleteUserQuestion is the timed removal of a user's question
	DeleteUserQuestion DeletionKind = iota
	// DeleteBotReply is the timed removal of the bot's generated reply
	DeleteBotReply
	// DeleteSelfMessage is the self-cleanup of the bot's own chatter
	DeleteSelfMessage
)

func (k DeletionKind) String() string {
	switch k {
	case DeleteUserQuestion:
		return "user_question"
	case DeleteBotReply:
		return "bot_reply"
	default:
		return "self_message"
	}
}

// PendingDeletion describes a deferred removal of one message.
// Scheduled at most once per triggering event; destroyed when executed
// or when the target is confirmed already gone.
type PendingDeletion struct {
	MessageID string
	ChannelID string
	DueAt     time.Time
	Kind      DeletionKind
}
