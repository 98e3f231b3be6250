// Package config loads ttags settings and the OAuth client credentials.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfigurationMissing is returned when the client credentials cannot be
// found anywhere.
var ErrConfigurationMissing = errors.New("configuration missing")

// JournalOff disables the merge journal when used as journal_path
const JournalOff = "off"

// Config represents the application configuration
type Config struct {
	ClientKey        string        `yaml:"client_key"`
	ClientSecret     string        `yaml:"client_secret"`
	CredentialsPath  string        `yaml:"credentials_path"`
	APIKey           string        `yaml:"api_key"`
	APIToken         string        `yaml:"api_token"`
	APIBaseURL       string        `yaml:"api_base_url"`
	AuthBaseURL      string        `yaml:"auth_base_url"`
	CallbackPort     int           `yaml:"callback_port"`
	AuthExpiration   string        `yaml:"auth_expiration"`
	AuthTimeout      time.Duration `yaml:"auth_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	RateLimit        float64       `yaml:"rate_limit"`
	FetchConcurrency int           `yaml:"fetch_concurrency"`
	Grouper          string        `yaml:"grouper"`
	JournalPath      string        `yaml:"journal_path"`
	LogLevel         string        `yaml:"log_level"`
	Output           string        `yaml:"output"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		APIBaseURL:       "https://api.trello.com/1",
		AuthBaseURL:      "https://trello.com/1",
		CallbackPort:     8080,
		AuthExpiration:   "1day",
		AuthTimeout:      5 * time.Minute,
		RequestTimeout:   30 * time.Second,
		RateLimit:        10,
		FetchConcurrency: 4,
		Grouper:          "edit",
		LogLevel:         "info",
		Output:           "table",
	}
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables (TTAGS_*)
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. the YAML file at path, $TTAGS_CONFIG, or ~/.config/ttags/config.yaml
// 4. built-in defaults
func Load(path string) (*Config, error) {
	cfg := Defaults()

	// .env.local never overrides variables already set in the environment
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	if path == "" {
		path = os.Getenv("TTAGS_CONFIG")
	}
	if err := loadYAMLConfig(cfg, path); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	if cfg.CredentialsPath == "" {
		cfg.CredentialsPath = filepath.Join(homeDir, ".config", "ttags", "client_credentials.json")
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = filepath.Join(homeDir, ".local", "share", "ttags", "journal.db")
	}
	cfg.CredentialsPath = expandHome(cfg.CredentialsPath, homeDir)
	if cfg.JournalPath != JournalOff {
		cfg.JournalPath = expandHome(cfg.JournalPath, homeDir)
	}

	return cfg, nil
}

// loadYAMLConfig merges the YAML file into cfg. An explicit path must exist;
// the default location is optional.
func loadYAMLConfig(cfg *Config, path string) error {
	explicit := path != ""
	if !explicit {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(homeDir, ".config", "ttags", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := []struct {
		env, file string
		dst       *string
	}{
		{"TTAGS_CLIENT_KEY", "", &cfg.ClientKey},
		{"TTAGS_CLIENT_SECRET", "TTAGS_CLIENT_SECRET_FILE", &cfg.ClientSecret},
		{"TTAGS_CREDENTIALS_PATH", "", &cfg.CredentialsPath},
		{"TTAGS_API_KEY", "", &cfg.APIKey},
		{"TTAGS_API_TOKEN", "TTAGS_API_TOKEN_FILE", &cfg.APIToken},
		{"TTAGS_API_BASE_URL", "", &cfg.APIBaseURL},
		{"TTAGS_AUTH_BASE_URL", "", &cfg.AuthBaseURL},
		{"TTAGS_AUTH_EXPIRATION", "", &cfg.AuthExpiration},
		{"TTAGS_GROUPER", "", &cfg.Grouper},
		{"TTAGS_JOURNAL_PATH", "", &cfg.JournalPath},
		{"TTAGS_LOG_LEVEL", "", &cfg.LogLevel},
		{"TTAGS_OUTPUT", "", &cfg.Output},
	}
	for _, s := range strs {
		if v := getEnvOrFile(s.env, s.file); v != "" {
			*s.dst = v
		}
	}

	if v := os.Getenv("TTAGS_CALLBACK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TTAGS_CALLBACK_PORT %q: %w", v, err)
		}
		cfg.CallbackPort = port
	}
	if v := os.Getenv("TTAGS_FETCH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TTAGS_FETCH_CONCURRENCY %q: %w", v, err)
		}
		cfg.FetchConcurrency = n
	}
	if v := os.Getenv("TTAGS_RATE_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TTAGS_RATE_LIMIT %q: %w", v, err)
		}
		cfg.RateLimit = limit
	}
	if v := os.Getenv("TTAGS_AUTH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TTAGS_AUTH_TIMEOUT %q: %w", v, err)
		}
		cfg.AuthTimeout = d
	}
	if v := os.Getenv("TTAGS_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TTAGS_REQUEST_TIMEOUT %q: %w", v, err)
		}
		cfg.RequestTimeout = d
	}
	return nil
}

// JournalEnabled reports whether merges should be journaled.
func (c *Config) JournalEnabled() bool {
	return c.JournalPath != "" && c.JournalPath != JournalOff
}

// HasStaticToken reports whether pre-issued API credentials are configured.
func (c *Config) HasStaticToken() bool {
	return c.APIKey != "" && c.APIToken != ""
}

// ClientCredentials identify this application to the OAuth provider
type ClientCredentials struct {
	Key    string `json:"client_key"`
	Secret string `json:"client_secret"`
}

// LoadClientCredentials returns the configured client key and secret,
// falling back to the JSON file at CredentialsPath.
func (c *Config) LoadClientCredentials() (ClientCredentials, error) {
	if c.ClientKey != "" && c.ClientSecret != "" {
		return ClientCredentials{Key: c.ClientKey, Secret: c.ClientSecret}, nil
	}

	data, err := os.ReadFile(c.CredentialsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ClientCredentials{}, fmt.Errorf("%w: client credentials not found at %s", ErrConfigurationMissing, c.CredentialsPath)
		}
		return ClientCredentials{}, fmt.Errorf("failed to read client credentials: %w", err)
	}

	var creds ClientCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return ClientCredentials{}, fmt.Errorf("failed to parse client credentials %s: %w", c.CredentialsPath, err)
	}
	if creds.Key == "" || creds.Secret == "" {
		return ClientCredentials{}, fmt.Errorf("%w: %s needs client_key and client_secret", ErrConfigurationMissing, c.CredentialsPath)
	}
	return creds, nil
}

func expandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if fileVar == "" {
		return ""
	}
	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)
	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		if dir == homeDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
