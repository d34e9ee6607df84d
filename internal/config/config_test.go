package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Search.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.Search.MaxAttempts)
	}
	if cfg.Article.Marker != "▲" {
		t.Errorf("unexpected marker %q", cfg.Article.Marker)
	}
	if cfg.Server.Port != 5001 {
		t.Errorf("expected port 5001, got %d", cfg.Server.Port)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rallybrief.yaml")
	data := []byte(`
search:
  max_attempts: 5
  retry_delay_min: 2s
  retry_delay_max: 4s
article:
  marker: "■"
logging:
  level: debug
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Search.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.Search.MaxAttempts)
	}
	if cfg.Search.RetryDelayMin != 2*time.Second || cfg.Search.RetryDelayMax != 4*time.Second {
		t.Errorf("unexpected retry delay %s..%s", cfg.Search.RetryDelayMin, cfg.Search.RetryDelayMax)
	}
	if cfg.Article.Marker != "■" {
		t.Errorf("expected overridden marker, got %q", cfg.Article.Marker)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
	// untouched keys keep their defaults
	if cfg.Search.PublisherDomain != "newsis.com" {
		t.Errorf("expected default publisher domain, got %q", cfg.Search.PublisherDomain)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RALLYBRIEF_SERVER_PORT", "8080")
	t.Setenv("RALLYBRIEF_FORWARD_TARGET_URL", "https://example.com/hook")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for explicit missing config path")
	}

	wd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected env port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Forward.TargetURL != "https://example.com/hook" {
		t.Errorf("expected env target url, got %q", cfg.Forward.TargetURL)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Search.MaxAttempts = 0 }},
		{"template without date", func(c *Config) { c.Search.QueryTemplate = "no placeholder" }},
		{"inverted delay", func(c *Config) { c.Search.RetryDelayMin = 5 * time.Second }},
		{"inverted pause", func(c *Config) { c.Search.PauseMin = 4 * time.Second }},
		{"empty marker", func(c *Config) { c.Article.Marker = "" }},
		{"no selectors", func(c *Config) { c.Search.Selectors = nil }},
		{"no user agents", func(c *Config) { c.Browser.UserAgents = nil }},
		{"bad provider", func(c *Config) { c.AI.Provider = "gemini" }},
		{"bad target", func(c *Config) { c.Forward.TargetURL = "ftp://example.com" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad timezone", func(c *Config) { c.Server.Timezone = "Mars/Olympus" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://www.google.com/search"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateURL("/relative"); err == nil {
		t.Error("expected error for relative URL")
	}
}
