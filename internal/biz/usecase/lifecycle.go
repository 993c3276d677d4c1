package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/wardenlabs/askwarden/internal/biz/domain"
	"github.com/wardenlabs/askwarden/internal/biz/repo"
)

// GenericErrorNotice is the in-channel text for unexpected failures
const GenericErrorNotice = "An error occurred while processing your message."

// LifecycleConfig holds the tunables of the message lifecycle
type LifecycleConfig struct {
	Policy           domain.AccessPolicy
	DenialNotice     string
	QuestionTTL      time.Duration // delay before deleting an answered question
	ReplyTTL         time.Duration // additional delay before deleting the reply
	SelfTTL          time.Duration // delay before deleting the bot's own chatter
	ReplySearchLimit int           // history depth when locating the reply to delete
	MaxPending       int64         // bound on concurrently scheduled deferred deletions
}

// MessageLifecycleController orchestrates the per-message state
// machine: audit recording, access policy, reply generation, denial
// notices, and deferred deletions.
type MessageLifecycleController struct {
	chat     repo.ChatRepo
	audit    repo.AuditRepo
	snapshot repo.SnapshotRepo
	gen      repo.GeneratorRepo
	cache    *ResponseCache
	deduper  *WarningDeduper
	cfg      LifecycleConfig
	log      *zap.Logger

	// Deferred deletions are bounded but never dropped: the sweep
	// skips the designated channel, so a dropped cleanup would leave
	// the exchange in place forever. Schedulers wait for a slot and
	// only shutdown aborts the wait.
	pending    *semaphore.Weighted
	timersWG   sync.WaitGroup
	stop       context.Context
	stopCancel context.CancelFunc
}

// NewMessageLifecycleController creates the lifecycle controller
func NewMessageLifecycleController(
	chat repo.ChatRepo,
	audit repo.AuditRepo,
	snapshot repo.SnapshotRepo,
	gen repo.GeneratorRepo,
	cache *ResponseCache,
	deduper *WarningDeduper,
	cfg LifecycleConfig,
	log *zap.Logger,
) *MessageLifecycleController {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = 128
	}
	if cfg.ReplySearchLimit <= 0 {
		cfg.ReplySearchLimit = 200
	}
	stop, stopCancel := context.WithCancel(context.Background())
	return &MessageLifecycleController{
		chat:       chat,
		audit:      audit,
		snapshot:   snapshot,
		gen:        gen,
		cache:      cache,
		deduper:    deduper,
		cfg:        cfg,
		log:        log,
		pending:    semaphore.NewWeighted(cfg.MaxPending),
		stop:       stop,
		stopCancel: stopCancel,
	}
}

// BuildPrompt builds the deterministic generation prompt for a message
func BuildPrompt(content string) string {
	return "User: " + content + "\nAI: "
}

// HandleInbound runs the lifecycle for one inbound message.
// Only persistence failures are returned; generation and transport
// failures are recovered locally so one failing message never affects
// the next.
func (c *MessageLifecycleController) HandleInbound(ctx context.Context, msg *domain.InboundMessage) error {
	// The bot's own chatter is not logged or policy-checked, just
	// scheduled for self-cleanup.
	if msg.Author.ID == c.chat.BotID() {
		c.scheduleDeletion(domain.PendingDeletion{
			MessageID: msg.ID,
			ChannelID: msg.Channel.ID,
			DueAt:     time.Now().Add(c.cfg.SelfTTL),
			Kind:      domain.DeleteSelfMessage,
		})
		return nil
	}

	if _, err := c.audit.RecordActivity(ctx, activityFrom(msg)); err != nil {
		return err
	}
	c.export(ctx)

	roles, err := c.chat.MemberRoles(ctx, msg.Guild.ID, msg.Author.ID)
	if err != nil {
		c.notifyError(ctx, msg.Channel.ID, &domain.TransportError{Op: "member roles", Err: err})
		return nil
	}

	switch c.cfg.Policy.Decide(msg.Channel.Name, roles) {
	case domain.Allowed:
		return c.answer(ctx, msg)
	case domain.DeniedPartial, domain.DeniedFull:
		return c.deny(ctx, msg)
	default:
		// Channel not governed by the policy; ordinary command
		// dispatch continues in the server.
		return nil
	}
}

// HandleCommand records a recognized command invocation
func (c *MessageLifecycleController) HandleCommand(ctx context.Context, msg *domain.InboundMessage) error {
	rec := &domain.CommandRecord{
		GuildID:     msg.Guild.ID,
		GuildName:   msg.Guild.Name,
		ChannelID:   msg.Channel.ID,
		ChannelName: msg.Channel.Name,
		AuthorID:    msg.Author.ID,
		AuthorName:  msg.Author.Name,
		Command:     msg.Content,
		Timestamp:   time.Now(),
	}
	if _, err := c.audit.RecordCommand(ctx, rec); err != nil {
		return err
	}
	c.export(ctx)
	return nil
}

// ExportSnapshot forces a snapshot export (used by the !export command)
func (c *MessageLifecycleController) ExportSnapshot(ctx context.Context) error {
	return c.snapshot.Export(ctx)
}

// answer handles the Allowed path: generate, send, record, and
// schedule the timed cleanup of the whole exchange.
func (c *MessageLifecycleController) answer(ctx context.Context, msg *domain.InboundMessage) error {
	prompt := BuildPrompt(msg.Content)
	key := CacheKey(prompt, msg.Author.ID)

	text, ok := c.cache.Get(key)
	if !ok {
		generated, err := c.gen.Generate(ctx, prompt, msg.Author.ID)
		if err != nil {
			c.notifyError(ctx, msg.Channel.ID, err)
			return nil
		}
		text = generated
		c.cache.Put(key, text)
	}

	if _, err := c.chat.SendReply(ctx, msg.Channel.ID, msg.ID, text); err != nil {
		c.notifyError(ctx, msg.Channel.ID, &domain.TransportError{Op: "send reply", Err: err})
		return nil
	}

	if _, err := c.audit.RecordActivity(ctx, c.botActivity(msg, text)); err != nil {
		return err
	}
	c.export(ctx)

	c.scheduleExchangeCleanup(msg)
	return nil
}

// deny handles both denial outcomes: immediate deletion of the
// trigger, a denial audit record, and a deduplicated notice.
func (c *MessageLifecycleController) deny(ctx context.Context, msg *domain.InboundMessage) error {
	// No grace period for the triggering message
	c.deleteQuietly(ctx, msg.Channel.ID, msg.ID)

	if _, err := c.audit.RecordActivity(ctx, c.botActivity(msg, c.cfg.DenialNotice)); err != nil {
		return err
	}
	c.export(ctx)

	if _, err := c.deduper.SendOnce(ctx, msg.Channel.ID, c.cfg.DenialNotice); err != nil {
		c.log.Error("failed to send denial notice",
			zap.String("channel_id", msg.Channel.ID), zap.Error(err))
	}
	return nil
}

// scheduleExchangeCleanup removes the question after QuestionTTL and,
// ReplyTTL later, searches recent history for the bot reply that
// references it and removes that too. Missing targets are success.
// Waits for a timer slot when the backlog is full.
func (c *MessageLifecycleController) scheduleExchangeCleanup(msg *domain.InboundMessage) {
	if err := c.pending.Acquire(c.stop, 1); err != nil {
		// Shutting down
		return
	}

	c.timersWG.Add(1)
	go func() {
		defer c.timersWG.Done()
		defer c.pending.Release(1)

		if !c.sleep(c.cfg.QuestionTTL) {
			return
		}
		c.deleteQuietly(context.Background(), msg.Channel.ID, msg.ID)

		if !c.sleep(c.cfg.ReplyTTL) {
			return
		}
		history, err := c.chat.ChannelHistory(context.Background(), msg.Channel.ID, c.cfg.ReplySearchLimit)
		if err != nil {
			c.log.Warn("reply lookup failed, leaving reply in place",
				zap.String("message_id", msg.ID), zap.Error(err))
			return
		}
		// No match within the search window means no deletion, silently
		if reply, ok := domain.FindReplyTo(history, c.chat.BotID(), msg.ID); ok {
			c.deleteQuietly(context.Background(), msg.Channel.ID, reply.ID)
		}
	}()
}

// scheduleDeletion performs a single deferred deletion, waiting for a
// timer slot when the backlog is full
func (c *MessageLifecycleController) scheduleDeletion(pd domain.PendingDeletion) {
	if err := c.pending.Acquire(c.stop, 1); err != nil {
		return
	}

	c.timersWG.Add(1)
	go func() {
		defer c.timersWG.Done()
		defer c.pending.Release(1)

		if !c.sleep(time.Until(pd.DueAt)) {
			return
		}
		c.deleteQuietly(context.Background(), pd.ChannelID, pd.MessageID)
	}()
}

// deleteQuietly deletes a message treating an already-gone target as
// success. This idempotent delete is the only coordination between
// per-message timers and the periodic sweep.
func (c *MessageLifecycleController) deleteQuietly(ctx context.Context, channelID, messageID string) {
	err := c.chat.DeleteMessage(ctx, channelID, messageID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.log.Warn("message deletion failed",
			zap.String("channel_id", channelID),
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}

// export writes a fresh snapshot, best-effort
func (c *MessageLifecycleController) export(ctx context.Context) {
	if err := c.snapshot.Export(ctx); err != nil {
		c.log.Error("snapshot export failed", zap.Error(err))
	}
}

// notifyError logs a recovered failure and posts one generic notice
func (c *MessageLifecycleController) notifyError(ctx context.Context, channelID string, err error) {
	c.log.Error("message handling failed",
		zap.String("channel_id", channelID), zap.Error(err))
	if _, sendErr := c.chat.SendText(ctx, channelID, GenericErrorNotice); sendErr != nil {
		c.log.Error("failed to send error notice",
			zap.String("channel_id", channelID), zap.Error(sendErr))
	}
}

// activityFrom builds the audit record for an inbound message
func activityFrom(msg *domain.InboundMessage) *domain.ActivityRecord {
	return &domain.ActivityRecord{
		ChannelID:   msg.Channel.ID,
		ChannelName: msg.Channel.Name,
		GuildID:     msg.Guild.ID,
		GuildName:   msg.Guild.Name,
		AuthorID:    msg.Author.ID,
		AuthorName:  msg.Author.Name,
		Content:     msg.Content,
		Timestamp:   time.Now(),
	}
}

// botActivity builds an audit record attributing content to the bot
func (c *MessageLifecycleController) botActivity(msg *domain.InboundMessage, content string) *domain.ActivityRecord {
	return &domain.ActivityRecord{
		ChannelID:   msg.Channel.ID,
		ChannelName: msg.Channel.Name,
		GuildID:     msg.Guild.ID,
		GuildName:   msg.Guild.Name,
		AuthorID:    c.chat.BotID(),
		AuthorName:  c.chat.BotName(),
		Content:     content,
		Timestamp:   time.Now(),
	}
}

// sleep waits for d unless the controller is shutting down
func (c *MessageLifecycleController) sleep(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.stop.Done():
		return false
	}
}

// Shutdown stops accepting timer completions and waits up to grace for
// in-flight deferred deletions. A missed deletion is cosmetic, so
// remaining timers are abandoned after the grace period.
func (c *MessageLifecycleController) Shutdown(grace time.Duration) {
	c.stopCancel()

	finished := make(chan struct{})
	go func() {
		c.timersWG.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(grace):
		c.log.Warn("abandoning in-flight deletion timers")
	}
}

// Wait blocks until all in-flight deferred deletions finish
func (c *MessageLifecycleController) Wait() {
	c.timersWG.Wait()
}
