package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/wardenlabs/askwarden/internal/biz/domain"
	"github.com/wardenlabs/askwarden/internal/biz/repo"
	"github.com/wardenlabs/askwarden/internal/infra/lark"
)

// chatRepo adapts the Lark client to the transport interface.
// The platform has no native role system, so role assignments are
// resolved once at startup from the policy file into typed sets
// (member ID -> role names) and answered locally.
type chatRepo struct {
	client *lark.Client
	guild  domain.Guild
	roles  map[string]domain.RoleSet
}

// NewChatRepo creates the transport adapter. assignments maps a role
// name to the member IDs holding it.
func NewChatRepo(client *lark.Client, guild domain.Guild, assignments map[string][]string) repo.ChatRepo {
	roles := make(map[string]domain.RoleSet)
	for roleName, members := range assignments {
		for _, memberID := range members {
			if roles[memberID] == nil {
				roles[memberID] = domain.NewRoleSet()
			}
			roles[memberID][roleName] = struct{}{}
		}
	}
	return &chatRepo{client: client, guild: guild, roles: roles}
}

func (r *chatRepo) BotID() string   { return r.client.BotID() }
func (r *chatRepo) BotName() string { return r.client.BotName() }

func (r *chatRepo) SendText(ctx context.Context, channelID, text string) (string, error) {
	id, err := r.client.SendText(ctx, channelID, text)
	if err != nil {
		return "", fmt.Errorf("send text: %w", err)
	}
	return id, nil
}

func (r *chatRepo) SendReply(ctx context.Context, channelID, replyToID, text string) (string, error) {
	// Lark addresses replies by message ID; channelID is implied
	id, err := r.client.SendReply(ctx, replyToID, text)
	if err != nil {
		if errors.Is(err, lark.ErrNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("send reply: %w", err)
	}
	return id, nil
}

func (r *chatRepo) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := r.client.DeleteMessage(ctx, messageID); err != nil {
		if errors.Is(err, lark.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (r *chatRepo) ChannelHistory(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	items, err := r.client.ListMessages(ctx, channelID, limit)
	if err != nil {
		if errors.Is(err, lark.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("channel history: %w", err)
	}

	messages := make([]domain.Message, 0, len(items))
	for _, item := range items {
		messages = append(messages, domain.Message{
			ID:          item.MsgID,
			AuthorID:    item.SenderID,
			AuthorIsBot: item.SenderIsBot || item.SenderID == r.client.BotID(),
			Content:     item.Content,
			ReplyToID:   item.ParentID,
			CreatedAt:   item.CreateTime,
		})
	}
	return messages, nil
}

func (r *chatRepo) ListGuilds(ctx context.Context) ([]domain.Guild, error) {
	// One workspace per app credential on this platform
	return []domain.Guild{r.guild}, nil
}

func (r *chatRepo) ListTextChannels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	chats, err := r.client.ListGroupChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	channels := make([]domain.Channel, 0, len(chats))
	for _, chat := range chats {
		channels = append(channels, domain.Channel{ID: chat.ChatID, Name: chat.Name})
	}
	return channels, nil
}

func (r *chatRepo) MemberRoles(ctx context.Context, guildID, memberID string) (domain.RoleSet, error) {
	roles, ok := r.roles[memberID]
	if !ok {
		return domain.NewRoleSet(), nil
	}
	// Copy so callers can never mutate the resolved assignments
	out := make(domain.RoleSet, len(roles))
	for name := range roles {
		out[name] = struct{}{}
	}
	return out, nil
}
