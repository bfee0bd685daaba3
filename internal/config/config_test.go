package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
logging:
  level: info
  console: true
storage:
  path: ./ridewatch.db
scheduler:
  enabled: true
jobs: {}
email:
  enabled: false
api:
  enabled: false
export:
  dir: ./exports
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", minimalYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Scheduler.Enabled {
		t.Fatal("expected scheduler enabled")
	}
	if cfg.Storage.Path != "./ridewatch.db" {
		t.Fatalf("unexpected storage path %q", cfg.Storage.Path)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", minimalYAML+"\nbogus_section:\n  x: 1\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	body := `{"logging":{"level":"debug","console":true,"file":{"enabled":false,"path":""}},
	"storage":{"path":"/tmp/rw.db"},
	"scheduler":{"enabled":true,"timezone":"UTC"},
	"jobs":{"snapshot":{"schedule":"30 6 * * *"}},
	"email":{"enabled":false},
	"api":{"enabled":false},
	"export":{"dir":"/tmp/exports"}}`
	m := NewManager(writeConfig(t, "config.json", body))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Jobs.Snapshot.Schedule != "30 6 * * *" {
		t.Fatalf("unexpected snapshot schedule %q", cfg.Jobs.Snapshot.Schedule)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing storage path", func(c *Config) { c.Storage.Path = "" }},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{"bad job timeout", func(c *Config) { c.Jobs.Export.Timeout = "soon" }},
		{"email without host", func(c *Config) { c.Email.Enabled = true; c.Email.Port = 587; c.Email.From = "a@b.c" }},
		{"feed without country", func(c *Config) {
			c.Feeds = []FeedConfig{{Retailer: "fluidfreeride", URL: "https://example.com/feed.json"}}
		}},
		{"duplicate feed", func(c *Config) {
			f := FeedConfig{Retailer: "rev", URL: "https://example.com/f.json", Country: "US"}
			c.Feeds = []FeedConfig{f, f}
		}},
		{"telegram without chat", func(c *Config) {
			c.Telegram = &TelegramConfig{Enabled: true, Token: "t"}
		}},
		{"missing export dir", func(c *Config) { c.Export.Dir = "" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Storage.Path = "./db"
			cfg.Export.Dir = "./exports"
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
