package conf

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config represents application configuration
type Config struct {
	// Lark platform credentials
	Lark LarkConfig

	// OpenAI generation configuration
	OpenAI OpenAIConfig

	// Audit persistence configuration
	Audit AuditConfig

	// Cleanup sweep interval in minutes
	CleanupMinutes int

	// Response cache capacity
	CacheSize int

	// Log file path
	LogPath string

	// Policy configuration (loaded from YAML)
	Policy *PolicyConfig

	// Debug mode
	Debug bool

	// policyErr holds a policy-file parse failure until Validate;
	// starting with a silently wrong policy would be worse than
	// refusing to start
	policyErr error
}

// LarkConfig contains platform credentials
type LarkConfig struct {
	AppID         string
	AppSecret     string
	WorkspaceName string // display name used for the guild in audit records
}

// OpenAIConfig contains generation configuration
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// AuditConfig contains audit persistence configuration
type AuditConfig struct {
	DBPath     string
	ExportPath string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dbPath := os.Getenv("AUDIT_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".askwarden", "audit.db")
	}

	exportPath := os.Getenv("EXPORT_PATH")
	if exportPath == "" {
		exportPath = "loggeddata.txt"
	}

	logPath := os.Getenv("LOG_PATH")
	if logPath == "" {
		logPath = "bot.log"
	}

	cleanupMinutes := 30
	if val := os.Getenv("CLEANUP_MINUTES"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cleanupMinutes = parsed
		}
	}

	cacheSize := 512
	if val := os.Getenv("CACHE_SIZE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cacheSize = parsed
		}
	}

	workspaceName := os.Getenv("WORKSPACE_NAME")
	if workspaceName == "" {
		workspaceName = "workspace"
	}

	policy, policyErr := LoadPolicyConfig(os.Getenv("POLICY_CONFIG_PATH"))

	return &Config{
		Lark: LarkConfig{
			AppID:         os.Getenv("LARK_APP_ID"),
			AppSecret:     os.Getenv("LARK_APP_SECRET"),
			WorkspaceName: workspaceName,
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  os.Getenv("OPENAI_MODEL"),
		},
		Audit: AuditConfig{
			DBPath:     dbPath,
			ExportPath: exportPath,
		},
		CleanupMinutes: cleanupMinutes,
		CacheSize:      cacheSize,
		LogPath:        logPath,
		Policy:         policy,
		Debug:          os.Getenv("DEBUG") == "true",
		policyErr:      policyErr,
	}
}

// Validate validates the configuration. Startup-time failures are
// fatal before the event loop starts.
func (c *Config) Validate() error {
	if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
		return &ConfigError{Field: "LARK_APP_ID/LARK_APP_SECRET", Message: "required"}
	}
	if c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	if c.CleanupMinutes <= 0 {
		return &ConfigError{Field: "CLEANUP_MINUTES", Message: "must be positive"}
	}
	if c.CacheSize <= 0 {
		return &ConfigError{Field: "CACHE_SIZE", Message: "must be positive"}
	}
	if c.policyErr != nil {
		return &ConfigError{Field: "POLICY_CONFIG_PATH", Message: c.policyErr.Error()}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
