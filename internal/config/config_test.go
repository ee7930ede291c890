package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CUBBY_EMAIL", "parent@example.com")
	t.Setenv("CUBBY_PASSWORD", "hunter2")

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval() != 30*time.Minute {
		t.Errorf("poll interval = %v, want 30m", cfg.PollInterval())
	}
	if cfg.HTTPTimeout() != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.HTTPTimeout())
	}
	if cfg.MaxConcurrent != 4 || cfg.CalendarMaxEvents != 10 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.ListenAddr != ":8093" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("CUBBY_EMAIL", "")
	t.Setenv("CUBBY_PASSWORD", "")

	if _, err := Load(New(), ""); err == nil {
		t.Fatal("expected error without credentials")
	}

	t.Setenv("CUBBY_EMAIL", "parent@example.com")
	if _, err := Load(New(), ""); err == nil {
		t.Fatal("expected error without password")
	}
}

func TestPollIntervalClamped(t *testing.T) {
	tests := []struct {
		minutes int
		want    time.Duration
	}{
		{1, MinPollInterval},
		{5, 5 * time.Minute},
		{45, 45 * time.Minute},
		{600, MaxPollInterval},
	}
	for _, tt := range tests {
		cfg := Config{PollIntervalMinutes: tt.minutes}
		if got := cfg.PollInterval(); got != tt.want {
			t.Errorf("PollInterval(%d) = %v, want %v", tt.minutes, got, tt.want)
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("CUBBY_EMAIL", "parent@example.com")
	t.Setenv("CUBBY_PASSWORD", "hunter2")

	path := filepath.Join(t.TempDir(), "cubby.yaml")
	data := "poll_interval_minutes: 60\nlisten_addr: \"127.0.0.1:9000\"\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval() != time.Hour {
		t.Errorf("poll interval = %v, want 1h", cfg.PollInterval())
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
}
