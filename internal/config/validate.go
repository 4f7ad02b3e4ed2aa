package config

import (
	"fmt"
	"strings"
)

// Validate checks invariants that would otherwise surface as confusing
// runtime failures deep inside a batch run.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		problems = append(problems, "paths.database_path must be set")
	}
	if strings.TrimSpace(c.Noraf.BaseURL) == "" {
		problems = append(problems, "noraf.base_url must be set")
	}
	if strings.TrimSpace(c.Noraf.SRUURL) == "" {
		problems = append(problems, "noraf.sru_url must be set")
	}
	if c.Noraf.RateLimitSeconds < 0 {
		problems = append(problems, "noraf.rate_limit_seconds must not be negative")
	}
	if c.Verify.CheckpointInterval <= 0 {
		problems = append(problems, "verify.checkpoint_interval must be positive")
	}
	if c.Match.YearFrom != 0 && c.Match.YearTo != 0 && c.Match.YearFrom > c.Match.YearTo {
		problems = append(problems, "match.year_from must not be after match.year_to")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
