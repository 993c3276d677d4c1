package domain

import "time"

// Guild represents the server/workspace a channel belongs to
type Guild struct {
	ID   string
	Name string
}

// Channel represents a text channel
type Channel struct {
	ID   string
	Name string
}

// Author represents the sender of a message
type Author struct {
	ID    string
	Name  string
	IsBot bool // true when the sender is this bot itself
}

// InboundMessage is a message delivered by the transport.
// Immutable once received.
type InboundMessage struct {
	ID        string
	Author    Author
	Channel   Channel
	Guild     Guild
	Content   string
	CreatedAt time.Time
	ReplyToID string // ID of the message this one replies to, empty if none
}

// Message is a single entry from a channel's history
type Message struct {
	ID          string
	AuthorID    string
	AuthorIsBot bool
	Content     string
	ReplyToID   string
	CreatedAt   time.Time
}

// IsFromBot checks if the message was authored by the given bot
func (m *Message) IsFromBot(botID string) bool {
	return m.AuthorID == botID
}

// FindRecentNotice reports whether history contains a bot-authored
// message whose content exactly equals notice.
// history is expected most-recent-first, already bounded by the caller.
func FindRecentNotice(history []Message, botID, notice string) bool {
	for i := range history {
		if history[i].IsFromBot(botID) && history[i].Content == notice {
			return true
		}
	}
	return false
}

// FindReplyTo returns the first bot-authored message in history whose
// reply reference equals messageID. history is expected
// most-recent-first; the first hit wins.
func FindReplyTo(history []Message, botID, messageID string) (Message, bool) {
	for i := range history {
		if history[i].IsFromBot(botID) && history[i].ReplyToID == messageID {
			return history[i], true
		}
	}
	return Message{}, false
}
