package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"go.uber.org/zap"
)

// ErrNotFound marks a message or chat that no longer exists on the
// platform side.
var ErrNotFound = errors.New("lark: not found")

// Message is an inbound message delivered over the event stream
type Message struct {
	ChatID      string
	MsgID       string
	Content     string
	SenderID    string
	SenderName  string
	SenderIsBot bool
	ParentID    string // ID of the message this one replies to
	CreateTime  time.Time
}

// HistoryMessage is one entry from a chat's message history
type HistoryMessage struct {
	MsgID       string
	Content     string
	SenderID    string
	SenderIsBot bool
	ParentID    string
	CreateTime  time.Time
}

// ChatInfo describes a group chat
type ChatInfo struct {
	ChatID string
	Name   string
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client wraps the Lark SDK: websocket event intake plus the message
// and chat APIs the gateway needs.
type Client struct {
	appID     string
	appSecret string
	log       *zap.Logger

	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc

	botOpenID string
	botName   string

	// chat and user name caches, names do not change often enough
	// to matter
	namesMu   sync.RWMutex
	chatNames map[string]string
	usersMu   sync.RWMutex
	userNames map[string]string
}

// NewClient creates a new Lark client
func NewClient(appID, appSecret string, log *zap.Logger) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		log:       log,
		chatNames: make(map[string]string),
		userNames: make(map[string]string),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// BotID returns the bot's own open_id, available after Start
func (c *Client) BotID() string {
	return c.botOpenID
}

// BotName returns the bot's display name, available after Start
func (c *Client) BotName() string {
	return c.botName
}

// Start connects over WebSocket and blocks, dispatching events to the
// registered handler until Stop is called.
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.larkCli = lark.NewClient(c.appID, c.appSecret)

	if err := c.fetchBotIdentity(); err != nil {
		return fmt.Errorf("failed to fetch bot identity: %w", err)
	}

	// The handler must return quickly so the SDK can ACK; events are
	// processed asynchronously.
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleEvent(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info("starting websocket connection")
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects the event stream
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// fetchBotIdentity resolves the bot's own open_id and name
func (c *Client) fetchBotIdentity() error {
	tokenReq := fmt.Sprintf(`{"app_id":%q,"app_secret":%q}`, c.appID, c.appSecret)
	tokenResp, err := http.Post(
		"https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal",
		"application/json",
		strings.NewReader(tokenReq),
	)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenResult struct {
		Code              int    `json:"code"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenResult); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}

	req, _ := http.NewRequest("GET", "https://open.feishu.cn/open-apis/bot/v3/info", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResult.TenantAccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	defer resp.Body.Close()

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&botResult); err != nil {
		return fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return fmt.Errorf("API error: %s", botResult.Msg)
	}

	c.botOpenID = botResult.Bot.OpenID
	c.botName = botResult.Bot.AppName
	c.log.Info("bot identity resolved",
		zap.String("open_id", c.botOpenID), zap.String("name", c.botName))
	return nil
}

// handleEvent converts an event into a Message and invokes the handler.
// Messages from the bot itself are passed through: the gateway handles
// its own chatter (self-cleanup) rather than dropping it here.
func (c *Client) handleEvent(event *larkim.P2MessageReceiveV1) {
	rawMsg := event.Event.Message
	if rawMsg == nil {
		return
	}
	if rawMsg.MessageType == nil || *rawMsg.MessageType != "text" {
		return
	}

	msg := &Message{
		ChatID: deref(rawMsg.ChatId),
		MsgID:  deref(rawMsg.MessageId),
	}
	if rawMsg.Content != nil {
		msg.Content = parseTextContent(*rawMsg.Content)
	}
	if rawMsg.ParentId != nil {
		msg.ParentID = *rawMsg.ParentId
	}
	if rawMsg.CreateTime != nil {
		if ms, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = time.UnixMilli(ms)
		}
	}

	if sender := event.Event.Sender; sender != nil {
		if sender.SenderId != nil && sender.SenderId.OpenId != nil {
			msg.SenderID = *sender.SenderId.OpenId
		}
		if sender.SenderType != nil && *sender.SenderType == "app" {
			msg.SenderIsBot = true
			if msg.SenderID == "" {
				msg.SenderID = c.botOpenID
			}
		}
	}

	// The event carries no display name; audit records need one
	if msg.SenderID != "" && !msg.SenderIsBot {
		name, err := c.UserName(context.Background(), msg.SenderID)
		if err != nil {
			c.log.Warn("failed to resolve sender name",
				zap.String("open_id", msg.SenderID), zap.Error(err))
		} else {
			msg.SenderName = name
		}
	}

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// SendText sends a plain text message, returning the new message ID
func (c *Client) SendText(ctx context.Context, chatID, text string) (string, error) {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("send message error: %s", resp.Msg)
	}
	return deref(resp.Data.MessageId), nil
}

// SendReply sends a text message as a reply to replyToID
func (c *Client) SendReply(ctx context.Context, replyToID, text string) (string, error) {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})

	req := larkim.NewReplyMessageReqBuilder().
		MessageId(replyToID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send reply failed: %w", err)
	}
	if !resp.Success() {
		if isNotFoundCode(resp.Code, resp.Msg) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("send reply error: %s", resp.Msg)
	}
	return deref(resp.Data.MessageId), nil
}

// DeleteMessage removes a message. Returns ErrNotFound when the target
// is already gone.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	req := larkim.NewDeleteMessageReqBuilder().
		MessageId(messageID).
		Build()

	resp, err := c.larkCli.Im.Message.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	if !resp.Success() {
		if isNotFoundCode(resp.Code, resp.Msg) {
			return ErrNotFound
		}
		return fmt.Errorf("delete message error: %s", resp.Msg)
	}
	return nil
}

// ListMessages returns up to limit messages from a chat,
// most-recent-first. Deleted messages are skipped.
func (c *Client) ListMessages(ctx context.Context, chatID string, limit int) ([]*HistoryMessage, error) {
	var messages []*HistoryMessage
	pageToken := ""

	for limit <= 0 || len(messages) < limit {
		pageSize := 50
		if limit > 0 && limit-len(messages) < pageSize {
			pageSize = limit - len(messages)
		}

		builder := larkim.NewListMessageReqBuilder().
			ContainerIdType("chat").
			ContainerId(chatID).
			SortType("ByCreateTimeDesc").
			PageSize(pageSize)
		if pageToken != "" {
			builder = builder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.Message.List(ctx, builder.Build())
		if err != nil {
			return nil, fmt.Errorf("list messages failed: %w", err)
		}
		if !resp.Success() {
			if isNotFoundCode(resp.Code, resp.Msg) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("list messages error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			if item.Deleted != nil && *item.Deleted {
				continue
			}
			msg := &HistoryMessage{
				MsgID:    deref(item.MessageId),
				ParentID: deref(item.ParentId),
			}
			if item.Body != nil && item.Body.Content != nil {
				msg.Content = parseTextContent(*item.Body.Content)
			}
			if item.CreateTime != nil {
				if ms, err := strconv.ParseInt(*item.CreateTime, 10, 64); err == nil {
					msg.CreateTime = time.UnixMilli(ms)
				}
			}
			if item.Sender != nil {
				if item.Sender.Id != nil {
					msg.SenderID = *item.Sender.Id
				}
				// History items carry "bot" where events carry "app"
				if item.Sender.SenderType != nil &&
					(*item.Sender.SenderType == "bot" || *item.Sender.SenderType == "app") {
					msg.SenderIsBot = true
				}
			}
			messages = append(messages, msg)
		}

		if resp.Data.HasMore == nil || !*resp.Data.HasMore || resp.Data.PageToken == nil {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

// ListGroupChats lists all group chats the bot is a member of
func (c *Client) ListGroupChats(ctx context.Context) ([]*ChatInfo, error) {
	var chats []*ChatInfo
	pageToken := ""

	for {
		builder := larkim.NewListChatReqBuilder().PageSize(100)
		if pageToken != "" {
			builder = builder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.Chat.List(ctx, builder.Build())
		if err != nil {
			return nil, fmt.Errorf("list chats failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("list chats error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			info := &ChatInfo{
				ChatID: deref(item.ChatId),
				Name:   deref(item.Name),
			}
			chats = append(chats, info)
			c.cacheChatName(info.ChatID, info.Name)
		}

		if resp.Data.HasMore == nil || !*resp.Data.HasMore || resp.Data.PageToken == nil {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	return chats, nil
}

// ChatName resolves a chat's display name, cached after first lookup
func (c *Client) ChatName(ctx context.Context, chatID string) (string, error) {
	c.namesMu.RLock()
	name, ok := c.chatNames[chatID]
	c.namesMu.RUnlock()
	if ok {
		return name, nil
	}

	req := larkim.NewGetChatReqBuilder().ChatId(chatID).Build()
	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return "", fmt.Errorf("get chat failed: %w", err)
	}
	if !resp.Success() {
		if isNotFoundCode(resp.Code, resp.Msg) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get chat error: %s", resp.Msg)
	}

	name = deref(resp.Data.Name)
	c.cacheChatName(chatID, name)
	return name, nil
}

// UserName resolves a user's display name, cached after first lookup
func (c *Client) UserName(ctx context.Context, openID string) (string, error) {
	c.usersMu.RLock()
	name, ok := c.userNames[openID]
	c.usersMu.RUnlock()
	if ok {
		return name, nil
	}

	req := larkcontact.NewGetUserReqBuilder().
		UserId(openID).
		UserIdType("open_id").
		Build()
	resp, err := c.larkCli.Contact.User.Get(ctx, req)
	if err != nil {
		return "", fmt.Errorf("get user failed: %w", err)
	}
	if !resp.Success() {
		if isNotFoundCode(resp.Code, resp.Msg) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get user error: %s", resp.Msg)
	}
	if resp.Data.User == nil {
		return "", fmt.Errorf("get user returned no user")
	}

	name = deref(resp.Data.User.Name)
	c.cacheUserName(openID, name)
	return name, nil
}

func (c *Client) cacheUserName(openID, name string) {
	if openID == "" {
		return
	}
	c.usersMu.Lock()
	c.userNames[openID] = name
	c.usersMu.Unlock()
}

func (c *Client) cacheChatName(chatID, name string) {
	if chatID == "" {
		return
	}
	c.namesMu.Lock()
	c.chatNames[chatID] = name
	c.namesMu.Unlock()
}

// parseTextContent extracts the text field from a text message payload
func parseTextContent(content string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return content
	}
	return parsed.Text
}

// isNotFoundCode maps platform "target gone" responses
func isNotFoundCode(code int, msg string) bool {
	// 230001: message not visible/deleted, 232009: chat not found
	if code == 230001 || code == 232009 {
		return true
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not found") || strings.Contains(lower, "not exist")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
