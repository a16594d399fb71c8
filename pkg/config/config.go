// Package config loads the voicebridge service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Defaults applied after unmarshal.
const (
	DefaultListenAddr = ":8080"
	DefaultVoice      = "alloy"
	DefaultDataDir    = "data"
)

// Config is the full service configuration.
type Config struct {
	// Listen is the HTTP listen address for the webhook and the media
	// websocket endpoint.
	Listen string `yaml:"listen"`

	// PublicHost is the externally reachable host for the media websocket
	// URL handed to the carrier (e.g. "bridge.example.com"). Required.
	PublicHost string `yaml:"public_host"`

	// Engine configures the AI engine connection.
	Engine EngineConfig `yaml:"engine"`

	// Agent configures the conversational behavior.
	Agent AgentConfig `yaml:"agent"`

	// DataDir is the directory for the order store. Default "data".
	DataDir string `yaml:"data_dir"`

	// LogLevel is debug, info, warn or error. Default info.
	LogLevel string `yaml:"log_level"`
}

// EngineConfig carries the AI engine connection settings.
type EngineConfig struct {
	// APIKey authenticates against the engine. Falls back to the
	// OPENAI_API_KEY environment variable when empty.
	APIKey string `yaml:"api_key"`

	// Model selects the realtime model. Empty uses the client default.
	Model string `yaml:"model"`

	// URL overrides the engine websocket endpoint. Empty uses the
	// client default.
	URL string `yaml:"url"`
}

// AgentConfig carries the conversational settings for each call.
type AgentConfig struct {
	// Instructions is the system prompt.
	Instructions string `yaml:"instructions"`

	// Greeting steers the opening utterance.
	Greeting string `yaml:"greeting"`

	// Voice selects the synthesized voice. Default "alloy".
	Voice string `yaml:"voice"`

	// InitTimeout bounds session setup. Zero uses the bridge default.
	InitTimeout time.Duration `yaml:"init_timeout"`

	// AGCTargetDB overrides the automatic gain target in dBFS.
	// Zero keeps the DSP default.
	AGCTargetDB float64 `yaml:"agc_target_db"`

	// VADThreshold overrides the engine's speech-detection sensitivity
	// in [0,1]. Zero keeps the engine default.
	VADThreshold float64 `yaml:"vad_threshold"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListenAddr
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Agent.Voice == "" {
		c.Agent.Voice = DefaultVoice
	}
	if c.Engine.APIKey == "" {
		c.Engine.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func (c *Config) validate() error {
	if c.PublicHost == "" {
		return fmt.Errorf("config: public_host is required")
	}
	if c.Agent.Instructions == "" {
		return fmt.Errorf("config: agent.instructions is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	if v := c.Agent.VADThreshold; v < 0 || v > 1 {
		return fmt.Errorf("config: agent.vad_threshold %v out of [0,1]", v)
	}
	return nil
}
