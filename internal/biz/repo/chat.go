package repo

import (
	"context"

	"github.com/wardenlabs/askwarden/internal/biz/domain"
)

// ChatRepo is the messaging-transport interface.
// DeleteMessage reports domain.ErrNotFound when the target is already
// gone; callers treat that as success.
type ChatRepo interface {
	// BotID returns the bot's own user ID
	BotID() string

	// BotName returns the bot's display name, used when attributing
	// audit records to the bot
	BotName() string

	// SendText sends a plain message and returns the new message ID
	SendText(ctx context.Context, channelID, text string) (string, error)

	// SendReply sends a message carrying a reply reference to replyToID
	SendReply(ctx context.Context, channelID, replyToID, text string) (string, error)

	// DeleteMessage removes a message from the channel
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// ChannelHistory returns up to limit messages, most-recent-first
	ChannelHistory(ctx context.Context, channelID string, limit int) ([]domain.Message, error)

	// ListGuilds lists the guilds the bot is connected to
	ListGuilds(ctx context.Context) ([]domain.Guild, error)

	// ListTextChannels lists the text channels of a guild
	ListTextChannels(ctx context.Context, guildID string) ([]domain.Channel, error)

	// MemberRoles returns the set of role names held by a member,
	// resolved from the per-guild role assignments
	MemberRoles(ctx context.Context, guildID, memberID string) (domain.RoleSet, error)
}
