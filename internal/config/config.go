package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	User      User      `yaml:"user"`
	Advice    Advice    `yaml:"advice"`
	Ratings   Ratings   `yaml:"ratings"`
	Analytics Analytics `yaml:"analytics"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

// User identifies the local user for CLI commands and the unauthenticated dashboard.
type User struct {
	ID     string `yaml:"id"`
	Locale string `yaml:"locale"`
}

type Advice struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	OllamaURL   string        `yaml:"ollama_url"`
	OpenAIModel string        `yaml:"openai_model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Structured  bool          `yaml:"structured"`
}

type Ratings struct {
	Threshold         float64 `yaml:"threshold"`
	MinSamples        int     `yaml:"min_samples"`
	RecoveryThreshold float64 `yaml:"recovery_threshold"`
	Variations        int     `yaml:"variations"`
	RefreshWorkers    int     `yaml:"refresh_workers"`
}

type Analytics struct {
	DefaultRange string `yaml:"default_range"`
	Timezone     string `yaml:"timezone"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	JWTSecretEnv   string   `yaml:"jwt_secret_env"`
}

type Logging struct {
	Level          string `yaml:"level"`
	JournalEntries int    `yaml:"journal_entries"`
}

// ConfigDir returns the XDG config directory for moodtrack.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "moodtrack")
}

// DataDir returns the XDG data directory for moodtrack.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "moodtrack")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/moodtrack/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'moodtrack init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		User: User{ID: "local", Locale: "en"},
		Advice: Advice{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   200,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
		},
		Ratings: Ratings{
			Threshold:         2.5,
			MinSamples:        3,
			RecoveryThreshold: 3.0,
			Variations:        3,
			RefreshWorkers:    4,
		},
		Analytics: Analytics{DefaultRange: "30d", Timezone: "Local"},
		Server: Server{
			Port:           8000,
			AllowedOrigins: []string{"http://localhost:3000"},
			JWTSecretEnv:   "MOODTRACK_JWT_SECRET",
		},
		Logging: Logging{Level: "INFO", JournalEntries: 1000},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.User.ID == "" {
		return fmt.Errorf("user.id must not be empty")
	}
	if c.Ratings.MinSamples < 1 {
		return fmt.Errorf("ratings.min_samples must be at least 1, got %d", c.Ratings.MinSamples)
	}
	if c.Ratings.Variations < 1 {
		return fmt.Errorf("ratings.variations must be at least 1, got %d", c.Ratings.Variations)
	}
	if c.Ratings.Threshold <= 0 || c.Ratings.Threshold > 5 {
		return fmt.Errorf("ratings.threshold must be in (0, 5], got %v", c.Ratings.Threshold)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the time zone used for calendar-day analytics.
func (c *Config) Location() (*time.Location, error) {
	switch c.Analytics.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Analytics.Timezone)
	if err != nil {
		return nil, fmt.Errorf("analytics.timezone: %w", err)
	}
	return loc, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// JWTSecret returns the API signing secret, or nil when authentication is disabled.
func (c *Config) JWTSecret() []byte {
	if c.Server.JWTSecretEnv == "" {
		return nil
	}
	if v := os.Getenv(c.Server.JWTSecretEnv); v != "" {
		return []byte(v)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
