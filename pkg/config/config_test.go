package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
listen: ":9000"
public_host: bridge.example.com
engine:
  api_key: sk-test
  model: gpt-4o-realtime-preview
agent:
  instructions: You take phone orders.
  greeting: Greet the caller.
  voice: verse
  init_timeout: 3s
  agc_target_db: -20
  vad_threshold: 0.6
data_dir: /var/lib/voicebridge
log_level: debug
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.PublicHost != "bridge.example.com" {
		t.Errorf("PublicHost = %q", cfg.PublicHost)
	}
	if cfg.Engine.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.Engine.APIKey)
	}
	if cfg.Agent.Voice != "verse" {
		t.Errorf("Voice = %q", cfg.Agent.Voice)
	}
	if cfg.Agent.InitTimeout != 3*time.Second {
		t.Errorf("InitTimeout = %v", cfg.Agent.InitTimeout)
	}
	if cfg.Agent.AGCTargetDB != -20 {
		t.Errorf("AGCTargetDB = %v", cfg.Agent.AGCTargetDB)
	}
	if cfg.Agent.VADThreshold != 0.6 {
		t.Errorf("VADThreshold = %v", cfg.Agent.VADThreshold)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
public_host: h
agent:
  instructions: hi
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Listen != DefaultListenAddr {
		t.Errorf("Listen = %q, want %q", cfg.Listen, DefaultListenAddr)
	}
	if cfg.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, DefaultDataDir)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Agent.Voice != DefaultVoice {
		t.Errorf("Voice = %q, want %q", cfg.Agent.Voice, DefaultVoice)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing public_host",
			yaml: "agent:\n  instructions: hi\n",
			want: "public_host",
		},
		{
			name: "missing instructions",
			yaml: "public_host: h\n",
			want: "instructions",
		},
		{
			name: "bad log level",
			yaml: "public_host: h\nlog_level: loud\nagent:\n  instructions: hi\n",
			want: "log_level",
		},
		{
			name: "vad threshold out of range",
			yaml: "public_host: h\nagent:\n  instructions: hi\n  vad_threshold: 1.5\n",
			want: "vad_threshold",
		},
		{
			name: "malformed yaml",
			yaml: "listen: [unterminated",
			want: "parse",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse accepted invalid config")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	cfg, err := Parse([]byte("public_host: h\nagent:\n  instructions: hi\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Engine.APIKey != "sk-env" {
		t.Errorf("APIKey = %q, want sk-env", cfg.Engine.APIKey)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicebridge.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PublicHost != "bridge.example.com" {
		t.Errorf("PublicHost = %q", cfg.PublicHost)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load accepted missing file")
	}
}
