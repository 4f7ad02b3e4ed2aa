package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"seiso/internal/config"
	"seiso/internal/logging"
	"seiso/internal/noraf"
	"seiso/internal/report"
)

// commandContext carries lazily-initialized shared state between commands.
type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	cfg    *config.Config
	logger *slog.Logger
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{configFlag: configFlag, verboseFlag: verboseFlag}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func (c *commandContext) configPath() (string, error) {
	if c.configFlag != nil && *c.configFlag != "" {
		return config.ExpandPath(*c.configFlag)
	}
	return config.DefaultConfigPath()
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path, err := c.configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		LogDir: cfg.Paths.LogDir,
	}
	if c.verboseFlag != nil && *c.verboseFlag {
		opts.Level = "debug"
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, err
	}
	c.logger = logger
	return logger, nil
}

func (c *commandContext) norafClient(logger *slog.Logger, runID string, readOnly bool) (*noraf.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return noraf.NewClient(noraf.Config{
		BaseURL:        cfg.Noraf.BaseURL,
		SRUURL:         cfg.Noraf.SRUURL,
		APIKey:         cfg.Noraf.APIKey,
		UserAgent:      cfg.Noraf.UserAgent,
		TimeoutSeconds: cfg.Noraf.TimeoutSeconds,
		UpdateLogPath:  cfg.Paths.UpdateLogPath,
		ReadOnly:       readOnly,
		RunID:          runID,
	}, logging.NewComponentLogger(logger, "noraf")), nil
}

func (c *commandContext) registryPause() time.Duration {
	if c.cfg == nil || c.cfg.Noraf.RateLimitSeconds <= 0 {
		return 0
	}
	return time.Duration(c.cfg.Noraf.RateLimitSeconds) * time.Second
}

// saveReport persists a report as CSV next to a JSON copy and announces the
// location. Empty reports are skipped.
func saveReport(out io.Writer, cfg *config.Config, name string, rep *report.Report, headers []report.Header) error {
	if rep.Len() == 0 {
		return nil
	}
	stamp := time.Now().Format("2006-01-02")
	base := filepath.Join(cfg.Paths.ReportDir, fmt.Sprintf("%s-%s", name, stamp))
	if err := rep.SaveCSV(base+".csv", headers); err != nil {
		return err
	}
	if err := rep.SaveJSON(base + ".json"); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d rows, saved to %s.csv\n", name, rep.Len(), base)
	return nil
}

// renderReport prints the report as a table on interactive terminals; in a
// pipeline only the row count is printed, the files carry the detail.
func renderReport(out io.Writer, name string, rep *report.Report, headers []report.Header) {
	if rep.Len() == 0 {
		return
	}
	if file, ok := out.(*os.File); ok && !isatty.IsTerminal(file.Fd()) {
		fmt.Fprintf(out, "%s: %d rows\n", name, rep.Len())
		return
	}
	fmt.Fprintln(out, name)
	fmt.Fprintln(out, rep.Render(headers))
}

// widestRow returns the longest row length, for reports with a variable
// column tail.
func widestRow(rep *report.Report) int {
	widest := 0
	for _, row := range rep.Rows() {
		if len(row) > widest {
			widest = len(row)
		}
	}
	return widest
}
