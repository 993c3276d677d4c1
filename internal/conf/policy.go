package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wardenlabs/askwarden/internal/biz/domain"
	"github.com/wardenlabs/askwarden/internal/biz/usecase"
)

// PolicyConfig contains the access policy and lifecycle tuning loaded
// from YAML. The platform has no native role system, so role
// assignments live here and are resolved once at startup.
type PolicyConfig struct {
	DesignatedChannel string `yaml:"designated_channel"`
	SpecialRole       string `yaml:"special_role"`
	VerifiedRole      string `yaml:"verified_role"`
	DenialNotice      string `yaml:"denial_notice"`

	QuestionTTLSeconds  int `yaml:"question_ttl_seconds"`
	ReplyTTLSeconds     int `yaml:"reply_ttl_seconds"`
	SelfTTLSeconds      int `yaml:"self_ttl_seconds"`
	ReplySearchLimit    int `yaml:"reply_search_limit"`
	NoticeLookback      int `yaml:"notice_lookback"`
	MaxPendingDeletions int `yaml:"max_pending_deletions"`

	ExportTimezone string `yaml:"export_timezone"`

	// Roles maps a role name to the member IDs holding it
	Roles map[string][]string `yaml:"roles"`
}

// DefaultPolicyConfig returns the built-in policy defaults
func DefaultPolicyConfig() *PolicyConfig {
	return &PolicyConfig{
		DesignatedChannel:   "ask-anything",
		SpecialRole:         "Special Access",
		VerifiedRole:        "Verified",
		DenialNotice:        "You do not have the required role for special access.",
		QuestionTTLSeconds:  60,
		ReplyTTLSeconds:     120,
		SelfTTLSeconds:      120,
		ReplySearchLimit:    200,
		NoticeLookback:      10,
		MaxPendingDeletions: 128,
		ExportTimezone:      "America/Phoenix",
		Roles:               map[string][]string{},
	}
}

// LoadPolicyConfig loads the policy file, falling back to defaults
// when no file is found. A file that exists but fails to parse is an
// error; a silently wrong policy would be worse than no file.
func LoadPolicyConfig(configPath string) (*PolicyConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/policy.yaml",
			"/etc/askwarden/policy.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "policy.yaml"))
		}
	}

	cfg := DefaultPolicyConfig()
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return DefaultPolicyConfig(), fmt.Errorf("failed to parse policy config %s: %w", path, err)
		}
		return cfg, nil
	}

	return cfg, nil
}

// ToAccessPolicy converts to the domain policy value object
func (p *PolicyConfig) ToAccessPolicy() domain.AccessPolicy {
	return domain.AccessPolicy{
		DesignatedChannel: p.DesignatedChannel,
		SpecialRole:       p.SpecialRole,
		VerifiedRole:      p.VerifiedRole,
	}
}

// ToLifecycleConfig converts to the lifecycle configuration
func (p *PolicyConfig) ToLifecycleConfig() usecase.LifecycleConfig {
	return usecase.LifecycleConfig{
		Policy:           p.ToAccessPolicy(),
		DenialNotice:     p.DenialNotice,
		QuestionTTL:      time.Duration(p.QuestionTTLSeconds) * time.Second,
		ReplyTTL:         time.Duration(p.ReplyTTLSeconds) * time.Second,
		SelfTTL:          time.Duration(p.SelfTTLSeconds) * time.Second,
		ReplySearchLimit: p.ReplySearchLimit,
		MaxPending:       int64(p.MaxPendingDeletions),
	}
}
