package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wardenlabs/askwarden/internal/biz/domain"
	"github.com/wardenlabs/askwarden/internal/biz/usecase"
)

// Stubs for the lifecycle controller's dependencies

type stubChatRepo struct {
	mu   sync.Mutex
	sent []string
}

func (s *stubChatRepo) BotID() string   { return "bot-1" }
func (s *stubChatRepo) BotName() string { return "askwarden" }

func (s *stubChatRepo) SendText(ctx context.Context, channelID, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return "sent-1", nil
}

func (s *stubChatRepo) SendReply(ctx context.Context, channelID, replyToID, text string) (string, error) {
	return "reply-1", nil
}

func (s *stubChatRepo) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return nil
}

func (s *stubChatRepo) ChannelHistory(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	return nil, nil
}

func (s *stubChatRepo) ListGuilds(ctx context.Context) ([]domain.Guild, error) {
	return []domain.Guild{{ID: "guild-1", Name: "workspace"}}, nil
}

func (s *stubChatRepo) ListTextChannels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	return nil, nil
}

func (s *stubChatRepo) MemberRoles(ctx context.Context, guildID, memberID string) (domain.RoleSet, error) {
	return domain.NewRoleSet(), nil
}

func (s *stubChatRepo) sentTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

type stubAuditRepo struct {
	mu       sync.Mutex
	commands []domain.CommandRecord
}

func (s *stubAuditRepo) RecordActivity(ctx context.Context, rec *domain.ActivityRecord) (int64, error) {
	return 1, nil
}

func (s *stubAuditRepo) RecordCommand(ctx context.Context, rec *domain.CommandRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, *rec)
	return int64(len(s.commands)), nil
}

func (s *stubAuditRepo) ListActivity(ctx context.Context) ([]domain.ActivityRecord, error) {
	return nil, nil
}

func (s *stubAuditRepo) ListCommands(ctx context.Context) ([]domain.CommandRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CommandRecord, len(s.commands))
	copy(out, s.commands)
	return out, nil
}

func (s *stubAuditRepo) Close() error { return nil }

type stubSnapshotRepo struct {
	mu      sync.Mutex
	exports int
}

func (s *stubSnapshotRepo) Export(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports++
	return nil
}

func (s *stubSnapshotRepo) exportCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}

type stubGenerator struct{}

func (s *stubGenerator) Generate(ctx context.Context, prompt, requesterID string) (string, error) {
	return "answer", nil
}

func newGatewayFixture(t *testing.T) (*Gateway, *stubChatRepo, *stubAuditRepo, *stubSnapshotRepo) {
	t.Helper()

	chat := &stubChatRepo{}
	audit := &stubAuditRepo{}
	snapshot := &stubSnapshotRepo{}

	cache, err := usecase.NewResponseCache(8)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	ctl := usecase.NewMessageLifecycleController(
		chat, audit, snapshot, &stubGenerator{}, cache,
		usecase.NewWarningDeduper(chat, 10, zap.NewNop()),
		usecase.LifecycleConfig{
			Policy: domain.AccessPolicy{
				DesignatedChannel: "ask-anything",
				SpecialRole:       "Special Access",
				VerifiedRole:      "Verified",
			},
			DenialNotice: "You do not have the required role for special access.",
			QuestionTTL:  time.Millisecond,
			ReplyTTL:     time.Millisecond,
			SelfTTL:      time.Millisecond,
		},
		zap.NewNop(),
	)

	gw := NewGateway(nil, chat, ctl, nil, domain.Guild{ID: "guild-1", Name: "workspace"}, zap.NewNop())
	return gw, chat, audit, snapshot
}

func commandMessage(content string) *domain.InboundMessage {
	return &domain.InboundMessage{
		ID:        "c-1",
		Author:    domain.Author{ID: "user-1", Name: "alice"},
		Channel:   domain.Channel{ID: "ch-general", Name: "general"},
		Guild:     domain.Guild{ID: "guild-1", Name: "workspace"},
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func TestRecognizedCommand(t *testing.T) {
	cases := []struct {
		content string
		name    string
		ok      bool
	}{
		{"!export", "!export", true},
		{"!export now", "!export", true},
		{"!foo", "", false},
		{"!exportx", "", false},
		{"!", "", false},
	}
	for _, tc := range cases {
		name, ok := recognizedCommand(tc.content)
		if name != tc.name || ok != tc.ok {
			t.Errorf("recognizedCommand(%q) = (%q, %v), want (%q, %v)",
				tc.content, name, ok, tc.name, tc.ok)
		}
	}
}

func TestHandleCommand_UnknownCommandNotRecorded(t *testing.T) {
	gw, chat, audit, _ := newGatewayFixture(t)

	gw.handleCommand(context.Background(), commandMessage("!foo"))

	commands, _ := audit.ListCommands(context.Background())
	if len(commands) != 0 {
		t.Errorf("Unrecognized commands must not be recorded, got %v", commands)
	}
	if len(chat.sentTexts()) != 0 {
		t.Errorf("Unrecognized commands must be silent, got %v", chat.sentTexts())
	}
}

func TestHandleCommand_ExportRecordedAndConfirmed(t *testing.T) {
	gw, chat, audit, snapshot := newGatewayFixture(t)

	gw.handleCommand(context.Background(), commandMessage("!export"))

	commands, _ := audit.ListCommands(context.Background())
	if len(commands) != 1 || commands[0].Command != "!export" {
		t.Fatalf("Expected one !export record, got %v", commands)
	}
	if snapshot.exportCount() == 0 {
		t.Error("!export must force a snapshot export")
	}
	sent := chat.sentTexts()
	if len(sent) != 1 || sent[0] != "Audit snapshot exported." {
		t.Errorf("Expected export confirmation, got %v", sent)
	}
}
