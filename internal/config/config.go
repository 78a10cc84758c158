package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Config represents application configuration for both the server and the
// client binaries. Unused sections are simply ignored by each side.
type Config struct {
	// Server
	ListenAddr        string `json:"listen_addr"`
	CertFile          string `json:"cert_file"`
	KeyFile           string `json:"key_file"`
	CredentialBackend string `json:"credential_backend"` // "file" or "sqlite"
	UsersFile         string `json:"users_file"`
	SQLitePath        string `json:"sqlite_path"`
	MaxConnections    int    `json:"max_connections"`
	AdminAddr         string `json:"admin_addr,omitempty"`      // empty disables the admin endpoint
	AdminProfiling    bool   `json:"admin_profiling,omitempty"` // mount pprof on the admin endpoint
	PidFile           string `json:"pid_file,omitempty"`        // empty disables the pidfile

	// AI collaborator
	AIProvider      string `json:"ai_provider"` // "ollama", "openai" or "anthropic"
	AIModel         string `json:"ai_model"`
	OllamaURL       string `json:"ollama_url"`
	OpenAIAPIKey    string `json:"openai_api_key,omitempty"`
	AnthropicAPIKey string `json:"anthropic_api_key,omitempty"`

	// Client
	ServerAddr         string `json:"server_addr"`
	CAFile             string `json:"ca_file,omitempty"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty"`

	// Logging
	LogLevel string `json:"log_level"` // debug, info, warn, error, none
	LogPath  string `json:"log_path,omitempty"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "chatrelay")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "chatrelay")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "chatrelay")
	}
}

// DefaultConfigPath returns the default location of the config file.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := defaultConfigDir()
	return &Config{
		ListenAddr:        ":8443",
		CredentialBackend: "file",
		UsersFile:         filepath.Join(dir, "users.txt"),
		SQLitePath:        filepath.Join(dir, "users.db"),
		MaxConnections:    256,
		AIProvider:        "ollama",
		AIModel:           "phi3",
		OllamaURL:         "http://localhost:11434",
		ServerAddr:        "localhost:8443",
		LogLevel:          "info",
	}
}

// Load reads the configuration file at path, falling back to defaults for
// any field the file does not set. A missing file yields pure defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}

	return nil
}
