package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Noraf.BaseURL != defaultNorafBaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.Noraf.BaseURL)
	}
	if cfg.Verify.CheckpointInterval != defaultCheckpointInterval {
		t.Errorf("CheckpointInterval = %d, want %d", cfg.Verify.CheckpointInterval, defaultCheckpointInterval)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
database_path = "` + filepath.Join(dir, "bibbi.db") + `"

[noraf]
base_url = "https://registry.example.org/api/"
rate_limit_seconds = 2

[verify]
checkpoint_interval = 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Noraf.BaseURL != "https://registry.example.org/api" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", cfg.Noraf.BaseURL)
	}
	if cfg.Noraf.RateLimitSeconds != 2 {
		t.Errorf("RateLimitSeconds = %d, want 2", cfg.Noraf.RateLimitSeconds)
	}
	if cfg.Verify.CheckpointInterval != 10 {
		t.Errorf("CheckpointInterval = %d, want 10", cfg.Verify.CheckpointInterval)
	}
	// Unset sections keep defaults.
	if cfg.Alma.BaseURL != defaultAlmaBaseURL {
		t.Errorf("Alma BaseURL = %q, want default", cfg.Alma.BaseURL)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[verify]
checkpoint_interval = 0

[logging]
format = "xml"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load should reject invalid configuration")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	got, err := ExpandPath("~/reports")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	if got != filepath.Join(home, "reports") {
		t.Errorf("ExpandPath(~/reports) = %q", got)
	}
	if got, _ := ExpandPath("/absolute/path"); got != "/absolute/path" {
		t.Errorf("absolute path should pass through, got %q", got)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := os.WriteFile(path, []byte(SampleConfig()), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !strings.Contains(cfg.Noraf.BaseURL, "authority.bibsys.no") {
		t.Errorf("unexpected sample registry URL %q", cfg.Noraf.BaseURL)
	}
}
