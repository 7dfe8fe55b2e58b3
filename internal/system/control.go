package system

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// ResponseMode steers the gate: let the model decide, answer only direct
// mentions, or answer everything that passes the garbage filter.
type ResponseMode string

const (
	ModeAIDecides     ResponseMode = "ai_decides"
	ModeMentionOnly   ResponseMode = "mention_only"
	ModeAlwaysRespond ResponseMode = "always_respond"
)

// ErrUnknownMode rejects a mode name outside the closed set.
type ErrUnknownMode struct{ Mode string }

func (e ErrUnknownMode) Error() string {
	return fmt.Sprintf("unknown response mode %q", e.Mode)
}

type fileConfig struct {
	ResponseMode     ResponseMode `json:"responseMode"`
	ThinkingEnabled  bool         `json:"thinkingEnabled"`
	ThinkingInterval int          `json:"thinkingInterval"`
	LogLevel         string       `json:"logLevel"`
}

// Control owns the runtime-mutable system settings, persisted to a small
// JSON file so mode changes survive restarts. A broken file falls back to
// defaults.
type Control struct {
	mu   sync.Mutex
	path string
	cfg  fileConfig
}

func NewControl(path string) *Control {
	c := &Control{
		path: path,
		cfg: fileConfig{
			ResponseMode:     ModeAIDecides,
			ThinkingEnabled:  true,
			ThinkingInterval: 60,
			LogLevel:         "info",
		},
	}
	c.load()
	return c
}

func (c *Control) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var loaded fileConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Warn().Str("component", "system").Err(err).Msg("system config corrupt, using defaults")
		return
	}
	if loaded.ResponseMode != "" {
		c.cfg.ResponseMode = loaded.ResponseMode
	}
	c.cfg.ThinkingEnabled = loaded.ThinkingEnabled
	if loaded.ThinkingInterval > 0 {
		c.cfg.ThinkingInterval = loaded.ThinkingInterval
	}
	if loaded.LogLevel != "" {
		c.cfg.LogLevel = loaded.LogLevel
	}
}

func (c *Control) save() {
	data, err := json.MarshalIndent(c.cfg, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		log.Warn().Str("component", "system").Err(err).Msg("create system config dir failed")
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		log.Warn().Str("component", "system").Err(err).Msg("persist system config failed")
	}
}

func (c *Control) Mode() ResponseMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.ResponseMode
}

// SetMode validates against the closed mode set; an unknown name is a
// rejected call, not a silent default.
func (c *Control) SetMode(mode string) error {
	switch ResponseMode(mode) {
	case ModeAIDecides, ModeMentionOnly, ModeAlwaysRespond:
	default:
		return ErrUnknownMode{Mode: mode}
	}
	c.mu.Lock()
	c.cfg.ResponseMode = ResponseMode(mode)
	c.save()
	c.mu.Unlock()
	log.Info().Str("component", "system").Str("mode", mode).Msg("response mode changed")
	return nil
}

func (c *Control) ThinkingEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.ThinkingEnabled
}

func (c *Control) SetThinkingEnabled(enabled bool) {
	c.mu.Lock()
	c.cfg.ThinkingEnabled = enabled
	c.save()
	c.mu.Unlock()
}

func (c *Control) ThinkingInterval() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.ThinkingInterval
}

func (c *Control) SetThinkingInterval(seconds int) {
	c.mu.Lock()
	c.cfg.ThinkingInterval = seconds
	c.save()
	c.mu.Unlock()
}
