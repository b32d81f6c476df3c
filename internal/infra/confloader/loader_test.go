package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Service struct {
		BaseURL string `koanf:"base_url"`
		Enabled bool   `koanf:"enabled"`
	} `koanf:"service"`
	Refresh struct {
		Interval time.Duration `koanf:"interval"`
	} `koanf:"refresh"`
	Fields []string `koanf:"fields"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/etc/lobbysync.yaml"))
	if l.envPrefix != "TEST_" || l.filePath != "/etc/lobbysync.yaml" {
		t.Errorf("options not applied: %+v", l)
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LOBBYSYNC_SERVICE__BASE_URL", "service.base_url"},
		{"LOBBYSYNC_QUEUE__RETRY__MAX_ATTEMPTS", "queue.retry.max_attempts"},
		{"LOBBYSYNC_LOG__LEVEL", "log.level"},
		{"LOBBYSYNC_DEBUG", "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := EnvKey(DefaultEnvPrefix, tt.in); got != tt.want {
				t.Errorf("EnvKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `
service:
  base_url: "http://lobby.local"
  enabled: true
`)
	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := l.GetString("service.base_url"); got != "http://lobby.local" {
		t.Errorf("service.base_url = %q", got)
	}
	if !l.GetBool("service.enabled") {
		t.Error("service.enabled should be true")
	}

	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v", err)
	}
	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, `
service:
  base_url: "http://from-file"
refresh:
  interval: 10s
fields: [roster]
`)
	t.Setenv("LOBBYSYNC_SERVICE__BASE_URL", "http://from-env")
	t.Setenv("LOBBYSYNC_FIELDS", "roster,host")

	l := NewLoader(
		WithConfigFile(path),
		WithOverrides(map[string]any{"refresh.interval": "7s"}),
	)
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.BaseURL != "http://from-env" {
		t.Errorf("BaseURL = %q, env should override file", cfg.Service.BaseURL)
	}
	if cfg.Refresh.Interval != 7*time.Second {
		t.Errorf("Interval = %v, overrides should win", cfg.Refresh.Interval)
	}
	if len(cfg.Fields) != 2 || cfg.Fields[1] != "host" {
		t.Errorf("Fields = %v", cfg.Fields)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_Load_KeepsDefaults(t *testing.T) {
	path := writeConfig(t, "service:\n  enabled: true\n")

	var cfg testConfig
	cfg.Service.BaseURL = "http://default"
	cfg.Refresh.Interval = 5 * time.Second

	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.BaseURL != "http://default" || cfg.Refresh.Interval != 5*time.Second {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if !cfg.Service.Enabled {
		t.Error("file value not applied")
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"service.base_url": "http://map", "debug": true}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}
	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cfg.Service.BaseURL != "http://map" {
		t.Errorf("BaseURL = %q, dotted keys should nest", cfg.Service.BaseURL)
	}
	if len(l.Keys()) != 2 {
		t.Errorf("Keys() = %v", l.Keys())
	}
}
