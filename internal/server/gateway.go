package server

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wardenlabs/askwarden/internal/biz/domain"
	"github.com/wardenlabs/askwarden/internal/biz/repo"
	"github.com/wardenlabs/askwarden/internal/biz/usecase"
	"github.com/wardenlabs/askwarden/internal/infra/lark"
	"github.com/wardenlabs/askwarden/internal/service"
)

const commandPrefix = "!"

const commandErrorNotice = "An error occurred while processing the command."

// shutdownGrace bounds how long in-flight deletion timers may delay
// shutdown; a missed deletion is cosmetic.
const shutdownGrace = 5 * time.Second

// Gateway wires the event stream into the message lifecycle: event
// dedup, domain conversion, panic containment, and command dispatch.
type Gateway struct {
	client    *lark.Client
	chat      repo.ChatRepo
	ctl       *usecase.MessageLifecycleController
	scheduler *service.CleanupScheduler
	guild     domain.Guild
	log       *zap.Logger

	// Event deduplication cache
	seenMsgsMu sync.RWMutex
	seenMsgs   map[string]time.Time
}

// NewGateway creates the gateway server
func NewGateway(
	client *lark.Client,
	chat repo.ChatRepo,
	ctl *usecase.MessageLifecycleController,
	scheduler *service.CleanupScheduler,
	guild domain.Guild,
	log *zap.Logger,
) *Gateway {
	return &Gateway{
		client:    client,
		chat:      chat,
		ctl:       ctl,
		scheduler: scheduler,
		guild:     guild,
		log:       log,
		seenMsgs:  make(map[string]time.Time),
	}
}

// Start starts the cleanup scheduler and blocks on the event stream
func (g *Gateway) Start() error {
	g.scheduler.Start(context.Background())
	g.client.OnMessage(g.handleMessage)

	if guilds, err := g.chat.ListGuilds(context.Background()); err == nil {
		g.log.Info("gateway ready", zap.Int("guilds", len(guilds)))
	}
	return g.client.Start()
}

// Stop shuts the gateway down: scheduler first, then the event
// stream, then waits briefly for in-flight deletion timers.
func (g *Gateway) Stop() {
	g.scheduler.Stop()
	g.client.Stop()
	g.ctl.Shutdown(shutdownGrace)
}

// handleMessage receives an event from the transport. It returns
// quickly; processing happens on its own goroutine.
func (g *Gateway) handleMessage(msg *lark.Message) {
	if g.isMessageSeen(msg.MsgID) {
		g.log.Debug("duplicate event ignored", zap.String("message_id", msg.MsgID))
		return
	}
	g.markMessageSeen(msg.MsgID)

	go g.process(msg)
}

// process runs the lifecycle for one event. Unexpected failures are
// contained here: logged with full context, answered with one generic
// notice, and never allowed to take down the event loop.
func (g *Gateway) process(msg *lark.Message) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			g.log.Error("panic in message handling",
				zap.String("message_id", msg.MsgID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			if _, err := g.chat.SendText(ctx, msg.ChatID, usecase.GenericErrorNotice); err != nil {
				g.log.Error("failed to send error notice", zap.Error(err))
			}
		}
	}()

	inbound := g.toInbound(ctx, msg)

	if err := g.ctl.HandleInbound(ctx, inbound); err != nil {
		// Only persistence failures reach here; the audit trail is
		// load-bearing, so the user is told something went wrong.
		g.log.Error("lifecycle failed",
			zap.String("message_id", msg.MsgID), zap.Error(err))
		if _, sendErr := g.chat.SendText(ctx, msg.ChatID, usecase.GenericErrorNotice); sendErr != nil {
			g.log.Error("failed to send error notice", zap.Error(sendErr))
		}
		return
	}

	if !inbound.Author.IsBot && strings.HasPrefix(inbound.Content, commandPrefix) {
		g.handleCommand(ctx, inbound)
	}
}

// recognizedCommand reports whether content invokes a known command
// and returns its name
func recognizedCommand(content string) (string, bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return "", false
	}
	switch fields[0] {
	case "!export":
		return fields[0], true
	}
	return "", false
}

// handleCommand records a recognized invocation and dispatches it.
// Unrecognized commands are dropped without a record.
func (g *Gateway) handleCommand(ctx context.Context, msg *domain.InboundMessage) {
	name, ok := recognizedCommand(msg.Content)
	if !ok {
		g.log.Debug("unknown command ignored", zap.String("content", msg.Content))
		return
	}

	if err := g.ctl.HandleCommand(ctx, msg); err != nil {
		g.log.Error("command record failed",
			zap.String("command", msg.Content), zap.Error(err))
		if _, sendErr := g.chat.SendText(ctx, msg.Channel.ID, commandErrorNotice); sendErr != nil {
			g.log.Error("failed to send command error notice", zap.Error(sendErr))
		}
		return
	}

	switch name {
	case "!export":
		if err := g.ctl.ExportSnapshot(ctx); err != nil {
			g.log.Error("export command failed", zap.Error(err))
			_, _ = g.chat.SendText(ctx, msg.Channel.ID, commandErrorNotice)
			return
		}
		_, _ = g.chat.SendText(ctx, msg.Channel.ID, "Audit snapshot exported.")
	}
}

// toInbound converts a transport event into a domain message
func (g *Gateway) toInbound(ctx context.Context, msg *lark.Message) *domain.InboundMessage {
	channelName, err := g.client.ChatName(ctx, msg.ChatID)
	if err != nil {
		g.log.Warn("failed to resolve channel name",
			zap.String("chat_id", msg.ChatID), zap.Error(err))
	}

	authorName := msg.SenderName
	isBot := msg.SenderIsBot || msg.SenderID == g.chat.BotID()
	if isBot {
		authorName = g.chat.BotName()
	}

	return &domain.InboundMessage{
		ID: msg.MsgID,
		Author: domain.Author{
			ID:    msg.SenderID,
			Name:  authorName,
			IsBot: isBot,
		},
		Channel:   domain.Channel{ID: msg.ChatID, Name: channelName},
		Guild:     g.guild,
		Content:   msg.Content,
		CreatedAt: msg.CreateTime,
		ReplyToID: msg.ParentID,
	}
}

// isMessageSeen checks if an event has been processed
func (g *Gateway) isMessageSeen(msgID string) bool {
	g.seenMsgsMu.RLock()
	defer g.seenMsgsMu.RUnlock()
	_, exists := g.seenMsgs[msgID]
	return exists
}

// markMessageSeen marks an event as processed and prunes entries
// older than five minutes
func (g *Gateway) markMessageSeen(msgID string) {
	g.seenMsgsMu.Lock()
	defer g.seenMsgsMu.Unlock()
	g.seenMsgs[msgID] = time.Now()

	cutoff := time.Now().Add(-5 * time.Minute)
	for id, ts := range g.seenMsgs {
		if ts.Before(cutoff) {
			delete(g.seenMsgs, id)
		}
	}
}
