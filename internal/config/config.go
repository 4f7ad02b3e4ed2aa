package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations used by the batch jobs.
type Paths struct {
	DatabasePath  string `toml:"database_path"`
	ReportDir     string `toml:"report_dir"`
	CheckpointDir string `toml:"checkpoint_dir"`
	HarvestDir    string `toml:"harvest_dir"`
	LogDir        string `toml:"log_dir"`
	UpdateLogPath string `toml:"update_log_path"`
	LockPath      string `toml:"lock_path"`
}

// Noraf contains configuration for the national authority registry API.
type Noraf struct {
	BaseURL          string `toml:"base_url"`
	SRUURL           string `toml:"sru_url"`
	APIKey           string `toml:"api_key"`
	UserAgent        string `toml:"user_agent"`
	RateLimitSeconds int    `toml:"rate_limit_seconds"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Alma contains configuration for the union-catalog search API.
type Alma struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Viaf contains configuration for the global authority cluster API.
type Viaf struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Match contains configuration for the matching run.
type Match struct {
	YearFrom int `toml:"year_from"`
	YearTo   int `toml:"year_to"`
}

// Verify contains configuration for the link-verification runs.
type Verify struct {
	CheckpointInterval int `toml:"checkpoint_interval"`
}

// Notifications contains configuration for ntfy push digests.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the root configuration document.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Noraf         Noraf         `toml:"noraf"`
	Alma          Alma          `toml:"alma"`
	Viaf          Viaf          `toml:"viaf"`
	Match         Match         `toml:"match"`
	Verify        Verify        `toml:"verify"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "seiso", "config.toml"), nil
}

// CreateSample writes the sample configuration document to path.
func CreateSample(path string) error {
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config %s: %w", path, err)
	}
	return nil
}

// Load reads the TOML file at path on top of defaults. A missing file is not
// an error: the defaults are returned so commands can run against a fresh
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.normalize()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", expanded, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", expanded, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize expands ~ in every configured path and trims endpoint URLs.
func (c *Config) normalize() {
	paths := []*string{
		&c.Paths.DatabasePath,
		&c.Paths.ReportDir,
		&c.Paths.CheckpointDir,
		&c.Paths.HarvestDir,
		&c.Paths.LogDir,
		&c.Paths.UpdateLogPath,
		&c.Paths.LockPath,
	}
	for _, p := range paths {
		if expanded, err := ExpandPath(*p); err == nil {
			*p = expanded
		}
	}
	c.Noraf.BaseURL = strings.TrimRight(strings.TrimSpace(c.Noraf.BaseURL), "/")
	c.Noraf.SRUURL = strings.TrimRight(strings.TrimSpace(c.Noraf.SRUURL), "/")
	c.Alma.BaseURL = strings.TrimRight(strings.TrimSpace(c.Alma.BaseURL), "/")
	c.Viaf.BaseURL = strings.TrimRight(strings.TrimSpace(c.Viaf.BaseURL), "/")
}

// EnsureDirectories creates the writable directories the batch jobs need.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.ReportDir,
		c.Paths.CheckpointDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.DatabasePath),
	}
	if c.Paths.UpdateLogPath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.UpdateLogPath))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure directory %s: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
