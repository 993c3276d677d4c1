package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wardenlabs/askwarden/internal/biz/domain"
	"github.com/wardenlabs/askwarden/internal/biz/repo"
)

const sweepPageSize = 200

// CleanupScheduler periodically purges the full message history of
// every text channel except the designated interaction channel.
// The sweep runs concurrently with per-message deletion timers; both
// rely on the idempotent-delete contract instead of locking.
type CleanupScheduler struct {
	chat       repo.ChatRepo
	designated string
	interval   time.Duration
	fanout     int
	log        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCleanupScheduler creates a scheduler sweeping every interval
func NewCleanupScheduler(chat repo.ChatRepo, designated string, interval time.Duration, log *zap.Logger) *CleanupScheduler {
	return &CleanupScheduler{
		chat:       chat,
		designated: designated,
		interval:   interval,
		fanout:     4,
		log:        log,
	}
}

// Start starts the recurring sweep
func (s *CleanupScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop()

	s.log.Info("cleanup scheduler started", zap.Duration("interval", s.interval))
}

// Stop stops the scheduler and waits for an in-flight sweep to finish
func (s *CleanupScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.log.Info("cleanup scheduler stopped")
}

func (s *CleanupScheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(s.ctx)
		}
	}
}

// SweepOnce purges all non-designated channels in every guild.
// One failing channel never stops the sweep.
func (s *CleanupScheduler) SweepOnce(ctx context.Context) {
	guilds, err := s.chat.ListGuilds(ctx)
	if err != nil {
		s.log.Error("sweep: failed to list guilds", zap.Error(err))
		return
	}

	for _, guild := range guilds {
		channels, err := s.chat.ListTextChannels(ctx, guild.ID)
		if err != nil {
			s.log.Error("sweep: failed to list channels",
				zap.String("guild_id", guild.ID), zap.Error(err))
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.fanout)
		for _, channel := range channels {
			if channel.Name == s.designated {
				continue
			}
			channel := channel
			g.Go(func() error {
				s.sweepChannel(gctx, channel)
				return nil
			})
		}
		_ = g.Wait()
	}
}

// sweepChannel deletes the channel's full history, unbounded depth.
// Already-gone targets are success; anything else is logged and the
// sweep moves on.
func (s *CleanupScheduler) sweepChannel(ctx context.Context, channel domain.Channel) {
	var purged int
	for {
		if ctx.Err() != nil {
			return
		}

		messages, err := s.chat.ChannelHistory(ctx, channel.ID, sweepPageSize)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return
			}
			s.log.Warn("sweep: history fetch failed",
				zap.String("channel", channel.Name), zap.Error(err))
			return
		}
		if len(messages) == 0 {
			break
		}

		var progressed bool
		for _, msg := range messages {
			err := s.chat.DeleteMessage(ctx, channel.ID, msg.ID)
			switch {
			case err == nil:
				purged++
				progressed = true
			case errors.Is(err, domain.ErrNotFound):
				// Deleted by a per-message timer in the meantime,
				// counts as done.
				progressed = true
			default:
				s.log.Warn("sweep: deletion failed",
					zap.String("channel", channel.Name),
					zap.String("message_id", msg.ID),
					zap.Error(err))
			}
		}
		if !progressed {
			// Every deletion in the page failed; stop rather than
			// hammer the same messages forever.
			s.log.Warn("sweep: no progress in channel, giving up this round",
				zap.String("channel", channel.Name))
			return
		}
	}

	if purged > 0 {
		s.log.Info("sweep: channel purged",
			zap.String("channel", channel.Name), zap.Int("messages", purged))
	}
}
