package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath returns the default configuration file path: ~/.inkwell/config.yaml.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".inkwell/config.yaml"
	}
	return filepath.Join(home, ".inkwell", "config.yaml")
}

// DataDir returns the inkwell data directory: ~/.inkwell.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".inkwell"
	}
	return filepath.Join(home, ".inkwell")
}

// Load reads and parses the config file at path, then applies INKWELL_*
// environment overrides. If path is empty, ConfigPath() is used.
// A missing file yields the defaults; a malformed file prints a warning and
// yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if uerr := yaml.Unmarshal(data, &cfg); uerr != nil {
			fmt.Printf("Warning: failed to parse config %s: %v\n", path, uerr)
			fmt.Println("Using default configuration.")
			cfg = DefaultConfig()
		}
	case os.IsNotExist(err):
		// fine, defaults
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(DataDir(), "inkwell.db")
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setIf := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setIf(&cfg.LLM.APIKey, "INKWELL_LLM_API_KEY")
	setIf(&cfg.LLM.APIBase, "INKWELL_LLM_API_BASE")
	setIf(&cfg.LLM.Model, "INKWELL_LLM_MODEL")
	setIf(&cfg.Chat.Backend, "INKWELL_CHAT_BACKEND")
	setIf(&cfg.Chat.Stream.APIKey, "INKWELL_STREAM_API_KEY")
	setIf(&cfg.Chat.Telegram.Token, "INKWELL_TELEGRAM_TOKEN")
	setIf(&cfg.Chat.Slack.BotToken, "INKWELL_SLACK_BOT_TOKEN")
	setIf(&cfg.Chat.Slack.AppToken, "INKWELL_SLACK_APP_TOKEN")
	setIf(&cfg.Search.APIKey, "INKWELL_SEARCH_API_KEY")
	if v := os.Getenv("INKWELL_GATEWAY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = p
		}
	}
}

// Save writes cfg to path as YAML.
// If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
