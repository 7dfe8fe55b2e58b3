package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultModel             = "deepseek/deepseek-chat-v3-0324:free"
	DefaultBaseURL           = "https://openrouter.ai/api/v1"
	DefaultTemperature       = 0.6
	DefaultPositiveTemp      = 0.8
	DefaultMaxTokens         = 2048
	DefaultBufSize           = 100
	DefaultTurnWindow        = 400
	DefaultContextLimit      = 20
	DefaultThinkingInterval  = 60
	DefaultThinkingBufferCap = 200
	DefaultHTTPPort          = 3000
	DefaultAgentName         = "Petal"
)

// DefaultMentionTriggers is the out-of-the-box trigger set. The exact
// patterns are configuration, not a law: deployments rename the agent.
var DefaultMentionTriggers = []string{`(?i)\bpetal\b`, `(?i)петал`}

type Config struct {
	Agent    AgentConfig    `json:"agent"`
	Provider ProviderConfig `json:"provider"`
	Memory   MemoryConfig   `json:"memory"`
	Gate     GateConfig     `json:"gate"`
	Thinking ThinkingConfig `json:"thinking"`
	Channels ChannelsConfig `json:"channels"`
	Gateway  GatewayConfig  `json:"gateway"`
	Logging  LoggingConfig  `json:"logging"`
}

type AgentConfig struct {
	Name    string `json:"name"`
	Creator string `json:"creator,omitempty"`
	// Persona is prepended to the identity section of the system turn.
	Persona string `json:"persona,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `json:"apiKey" env:"PETAL_API_KEY"`
	BaseURL string `json:"baseUrl,omitempty"`
	// Model profiles: the main response path, the cheap yes/no
	// classification path, and the thinking path share the call shape but
	// may use different models.
	Model         string  `json:"model"`
	ClassifyModel string  `json:"classifyModel,omitempty"`
	ThinkingModel string  `json:"thinkingModel,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"`
	MaxTokens     int     `json:"maxTokens,omitempty"`
}

type MemoryConfig struct {
	FactsPath  string `json:"factsPath,omitempty"`
	TurnWindow int    `json:"turnWindow,omitempty"`
	// ContextLimit is the exchange count handed to the prompt assembler;
	// the turn slice it yields is limit*2 entries.
	ContextLimit int `json:"contextLimit,omitempty"`
}

type GateConfig struct {
	MentionTriggers []string `json:"mentionTriggers,omitempty"`
	IgnoredUsers    []string `json:"ignoredUsers,omitempty"`
	HistoryWindow   int      `json:"historyWindow,omitempty"`
}

type ThinkingConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"intervalSeconds,omitempty"`
	BufferCap       int  `json:"bufferCap,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	HTTP     HTTPConfig     `json:"http"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token" env:"PETAL_TELEGRAM_TOKEN"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	APIKey  string `json:"apiKey,omitempty" env:"PETAL_HTTP_API_KEY"`
}

type GatewayConfig struct {
	BufSize int `json:"bufSize,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level,omitempty"`
}

func ConfigDir() string {
	if dir := os.Getenv("PETAL_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".petal"
	}
	return filepath.Join(home, ".petal")
}

func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func Default() *Config {
	return &Config{
		Agent: AgentConfig{Name: DefaultAgentName},
		Provider: ProviderConfig{
			BaseURL:     DefaultBaseURL,
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		Memory: MemoryConfig{
			FactsPath:    filepath.Join(ConfigDir(), "data", "perm_memory.json"),
			TurnWindow:   DefaultTurnWindow,
			ContextLimit: DefaultContextLimit,
		},
		Gate: GateConfig{
			MentionTriggers: append([]string(nil), DefaultMentionTriggers...),
			HistoryWindow:   6,
		},
		Thinking: ThinkingConfig{
			Enabled:         true,
			IntervalSeconds: DefaultThinkingInterval,
			BufferCap:       DefaultThinkingBufferCap,
		},
		Channels: ChannelsConfig{
			HTTP: HTTPConfig{Port: DefaultHTTPPort},
		},
		Gateway: GatewayConfig{BufSize: DefaultBufSize},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the JSON config at path, fills unset fields with defaults and
// applies environment overrides for secrets. A missing file yields the
// defaults, not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Agent.Name == "" {
		c.Agent.Name = DefaultAgentName
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultBaseURL
	}
	if c.Provider.Model == "" {
		c.Provider.Model = DefaultModel
	}
	if c.Provider.ClassifyModel == "" {
		c.Provider.ClassifyModel = c.Provider.Model
	}
	if c.Provider.ThinkingModel == "" {
		c.Provider.ThinkingModel = c.Provider.Model
	}
	if c.Provider.Temperature <= 0 {
		c.Provider.Temperature = DefaultTemperature
	}
	if c.Provider.MaxTokens <= 0 {
		c.Provider.MaxTokens = DefaultMaxTokens
	}
	if c.Memory.FactsPath == "" {
		c.Memory.FactsPath = filepath.Join(ConfigDir(), "data", "perm_memory.json")
	}
	if c.Memory.TurnWindow <= 0 {
		c.Memory.TurnWindow = DefaultTurnWindow
	}
	if c.Memory.ContextLimit <= 0 {
		c.Memory.ContextLimit = DefaultContextLimit
	}
	if len(c.Gate.MentionTriggers) == 0 {
		c.Gate.MentionTriggers = append([]string(nil), DefaultMentionTriggers...)
	}
	if c.Gate.HistoryWindow <= 0 {
		c.Gate.HistoryWindow = 6
	}
	if c.Thinking.IntervalSeconds <= 0 {
		c.Thinking.IntervalSeconds = DefaultThinkingInterval
	}
	if c.Thinking.BufferCap <= 0 {
		c.Thinking.BufferCap = DefaultThinkingBufferCap
	}
	if c.Channels.HTTP.Port <= 0 {
		c.Channels.HTTP.Port = DefaultHTTPPort
	}
	if c.Gateway.BufSize <= 0 {
		c.Gateway.BufSize = DefaultBufSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Save writes the config as indented JSON, creating the directory first.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
