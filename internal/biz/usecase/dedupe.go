package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/wardenlabs/askwarden/internal/biz/domain"
	"github.com/wardenlabs/askwarden/internal/biz/repo"
)

// WarningDeduper suppresses duplicate denial notices: before sending a
// fixed notice into a channel it scans the most recent messages for an
// identical bot-authored one and skips the send if found.
type WarningDeduper struct {
	chat     repo.ChatRepo
	lookback int
	log      *zap.Logger
}

// NewWarningDeduper creates a deduper with the given lookback window
func NewWarningDeduper(chat repo.ChatRepo, lookback int, log *zap.Logger) *WarningDeduper {
	if lookback <= 0 {
		lookback = 10
	}
	return &WarningDeduper{chat: chat, lookback: lookback, log: log}
}

// SendOnce sends text into the channel unless an identical
// bot-authored message appears within the lookback window.
// Returns true if a message was actually sent.
func (d *WarningDeduper) SendOnce(ctx context.Context, channelID, text string) (bool, error) {
	history, err := d.chat.ChannelHistory(ctx, channelID, d.lookback)
	if err != nil {
		// A failed lookback must not swallow the warning itself
		d.log.Warn("notice lookback failed, sending anyway",
			zap.String("channel_id", channelID), zap.Error(err))
	} else if domain.FindRecentNotice(history, d.chat.BotID(), text) {
		d.log.Debug("duplicate notice suppressed", zap.String("channel_id", channelID))
		return false, nil
	}

	if _, err := d.chat.SendText(ctx, channelID, text); err != nil {
		return false, err
	}
	return true, nil
}
