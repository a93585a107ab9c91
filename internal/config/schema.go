// Package config defines the configuration schema for inkwell.
//
// Configuration is read from a YAML file (default ~/.inkwell/config.yaml)
// with INKWELL_* environment variables overriding individual credentials.
package config

// GatewayConfig holds HTTP server settings.
type GatewayConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{Host: "0.0.0.0", Port: 18790}
}

// LLMConfig holds credentials and defaults for the model API.
type LLMConfig struct {
	APIKey      string  `yaml:"apiKey"`
	APIBase     string  `yaml:"apiBase"`
	Model       string  `yaml:"model"`
	ImageModel  string  `yaml:"imageModel"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
}

func defaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:       "gpt-4o",
		ImageModel:  "dall-e-3",
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// StreamChatConfig configures the hosted chat vendor backend
// (REST for outbound, websocket for inbound events).
type StreamChatConfig struct {
	BaseURL   string `yaml:"baseUrl"`
	WSURL     string `yaml:"wsUrl"`
	APIKey    string `yaml:"apiKey"`
	BotUserID string `yaml:"botUserId"`
}

func defaultStreamChatConfig() StreamChatConfig {
	return StreamChatConfig{BotUserID: "inkwell-bot"}
}

// TelegramConfig configures the Telegram backend.
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// SlackConfig configures the Slack socket-mode backend.
type SlackConfig struct {
	BotToken string `yaml:"botToken"`
	AppToken string `yaml:"appToken"`
}

// ChatConfig selects and configures the chat transport.
// Backend is one of "stream", "telegram", "slack".
type ChatConfig struct {
	Backend  string           `yaml:"backend"`
	Stream   StreamChatConfig `yaml:"stream"`
	Telegram TelegramConfig   `yaml:"telegram"`
	Slack    SlackConfig      `yaml:"slack"`
}

func defaultChatConfig() ChatConfig {
	return ChatConfig{
		Backend: "stream",
		Stream:  defaultStreamChatConfig(),
	}
}

// SearchConfig configures the web-search tool.
type SearchConfig struct {
	APIKey     string `yaml:"apiKey"`
	BaseURL    string `yaml:"baseUrl"`
	MaxResults int    `yaml:"maxResults"`
}

func defaultSearchConfig() SearchConfig {
	return SearchConfig{
		BaseURL:    "https://api.tavily.com/search",
		MaxResults: 5,
	}
}

// AgentConfig holds per-conversation agent behaviour.
type AgentConfig struct {
	SystemPrompt       string `yaml:"systemPrompt"`
	HistoryLimit       int    `yaml:"historyLimit"`
	HistoryKeep        int    `yaml:"historyKeep"`
	IdleTimeoutMinutes int    `yaml:"idleTimeoutMinutes"`
}

func defaultAgentConfig() AgentConfig {
	return AgentConfig{
		SystemPrompt:       "You are Inkwell, a concise and helpful AI writing assistant.",
		HistoryLimit:       40,
		HistoryKeep:        20,
		IdleTimeoutMinutes: 30,
	}
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Config is the root configuration object.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	LLM     LLMConfig     `yaml:"llm"`
	Chat    ChatConfig    `yaml:"chat"`
	Search  SearchConfig  `yaml:"search"`
	Agent   AgentConfig   `yaml:"agent"`
	Store   StoreConfig   `yaml:"store"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Gateway: defaultGatewayConfig(),
		LLM:     defaultLLMConfig(),
		Chat:    defaultChatConfig(),
		Search:  defaultSearchConfig(),
		Agent:   defaultAgentConfig(),
	}
}
