package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures platform credentials, the AI provider, posting safeguards,
// and scheduling behavior.
type Config struct {
	Account     AccountConfig        `yaml:"account"`
	Credentials CredentialsConfig    `yaml:"credentials"`
	Accounts    map[string]TokenPair `yaml:"accounts"`
	AI          AIConfig             `yaml:"ai"`
	Posting     PostingConfig        `yaml:"posting"`
	Storage     StorageConfig        `yaml:"storage"`
	Metrics     MetricsConfig        `yaml:"metrics"`
}

type AccountConfig struct {
	// Default handle to post as, without leading @.
	Handle string `yaml:"handle"`
	// Handles whose corpora feed a combined style profile.
	SourceHandles []string `yaml:"sourceHandles"`
}

type CredentialsConfig struct {
	// App (consumer) key pair. If empty, read from env X_API_KEY / X_API_SECRET.
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
	// Default user token pair for the default handle.
	// If empty, read X_ACCESS_TOKEN / X_ACCESS_TOKEN_SECRET.
	AccessToken  string `yaml:"accessToken"`
	AccessSecret string `yaml:"accessSecret"`
	// Bearer token for read-only corpus fetching. If empty, read X_BEARER_TOKEN.
	BearerToken string `yaml:"bearerToken"`
}

// TokenPair is a per-handle user credential from the accounts map.
type TokenPair struct {
	AccessToken  string `yaml:"accessToken"`
	AccessSecret string `yaml:"accessSecret"`
}

type AIConfig struct {
	// Provider is "openai" or "anthropic".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// If empty, read from env OPENAI_API_KEY or ANTHROPIC_API_KEY per provider.
	APIKey string `yaml:"apiKey"`
}

type PostingConfig struct {
	// Daily ceiling of successful publishes per account.
	MaxPerDay int `yaml:"maxPerDay"`
	// Run blocklist, AI safety and duplicate gates before publishing.
	SafetyCheck bool `yaml:"safetyCheck"`
	// Safety score threshold 1-5; a candidate passes at or above it.
	MinSafetyScore int `yaml:"minSafetyScore"`
	// Phrases that block a candidate when present (case-insensitive).
	Blocklist []string `yaml:"blocklist"`
	// Human-like delay bounds in seconds before each cycle acts.
	MinDelaySec int `yaml:"minDelaySec"`
	MaxDelaySec int `yaml:"maxDelaySec"`
	// Hours between scheduled posts.
	IntervalHours float64 `yaml:"intervalHours"`
}

type StorageConfig struct {
	DBPath     string `yaml:"dbPath"`
	ProfileDir string `yaml:"profileDir"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Account: AccountConfig{Handle: ""},
		AI:      AIConfig{Provider: "anthropic", Model: "claude-3-5-haiku-20241022"},
		Posting: PostingConfig{
			MaxPerDay:      5,
			SafetyCheck:    true,
			MinSafetyScore: 4,
			MinDelaySec:    30,
			MaxDelaySec:    120,
			IntervalHours:  24,
		},
		Storage: StorageConfig{DBPath: "./quillcast.db", ProfileDir: "./style_profiles"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Credentials.APIKey == "" {
		c.Credentials.APIKey = os.Getenv("X_API_KEY")
	}
	if c.Credentials.APISecret == "" {
		c.Credentials.APISecret = os.Getenv("X_API_SECRET")
	}
	if c.Credentials.AccessToken == "" {
		c.Credentials.AccessToken = os.Getenv("X_ACCESS_TOKEN")
	}
	if c.Credentials.AccessSecret == "" {
		c.Credentials.AccessSecret = os.Getenv("X_ACCESS_TOKEN_SECRET")
	}
	if c.Credentials.BearerToken == "" {
		c.Credentials.BearerToken = os.Getenv("X_BEARER_TOKEN")
	}
	switch strings.ToLower(c.AI.Provider) {
	case "openai":
		if c.AI.APIKey == "" {
			c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	default:
		c.AI.Provider = "anthropic"
		if c.AI.APIKey == "" {
			c.AI.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
