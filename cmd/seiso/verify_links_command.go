package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"seiso/internal/authority"
	"seiso/internal/bibbi"
	"seiso/internal/checkpoint"
	"seiso/internal/logging"
	"seiso/internal/report"
	"seiso/internal/runlock"
	"seiso/internal/verify"
)

func newVerifyLinksCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var noResume bool
	var kindNames []string

	cmd := &cobra.Command{
		Use:   "verify-links",
		Short: "Verify and repair catalog-to-registry links",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			lock, err := runlock.Acquire(cfg.Paths.LockPath)
			if err != nil {
				if errors.Is(err, runlock.ErrAlreadyRunning) {
					return fmt.Errorf("another run holds %s, refusing to start", cfg.Paths.LockPath)
				}
				return err
			}
			defer lock.Unlock()

			kinds, err := parseKinds(kindNames)
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			logger.Info("starting link verification", "run_id", runID, "dry_run", dryRun)

			registry, err := ctx.norafClient(logger, runID, dryRun)
			if err != nil {
				return err
			}

			storeOpts := []bibbi.Option{}
			if dryRun {
				storeOpts = append(storeOpts, bibbi.WithReadOnly())
			}
			store, err := bibbi.Open(cfg.Paths.DatabasePath, logger, storeOpts...)
			if err != nil {
				return err
			}
			defer store.Close()

			opts := []verify.Option{verify.WithPause(ctx.registryPause())}
			var cp *checkpoint.File
			if !noResume {
				cp, err = checkpoint.Open(
					filepath.Join(cfg.Paths.CheckpointDir, "verify-links.json"),
					runID, cfg.Verify.CheckpointInterval,
					logging.NewComponentLogger(logger, "checkpoint"))
				if err != nil {
					return err
				}
				opts = append(opts, verify.WithCheckpoint(cp))
			}

			processor := verify.NewProcessor(registry, store,
				logging.NewComponentLogger(logger, "verify"), opts...)

			// When resuming a same-day run, keep appending to its reports.
			if cp != nil && cp.Len() > 0 {
				logger.Info("resuming previous run", "processed", cp.Len())
				loadReportIfPresent(processor.Overview, cfg.Paths.ReportDir, "link-overview")
				loadReportIfPresent(processor.Errors, cfg.Paths.ReportDir, "link-errors")
				loadReportIfPresent(processor.OneToMany, cfg.Paths.ReportDir, "link-one-to-many")
				loadReportIfPresent(processor.NonSymmetric, cfg.Paths.ReportDir, "link-non-symmetric")
			}
			if err := processor.Run(cmd.Context(), kinds); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := saveReport(out, cfg, "link-overview", processor.Overview, verify.OverviewHeaders()); err != nil {
				return err
			}
			if err := saveReport(out, cfg, "link-errors", processor.Errors, verify.ErrorHeaders()); err != nil {
				return err
			}
			oneToManyHeaders := verify.OneToManyHeaders((widestRow(processor.OneToMany) - 2) / 2)
			if err := saveReport(out, cfg, "link-one-to-many", processor.OneToMany, oneToManyHeaders); err != nil {
				return err
			}
			if err := saveReport(out, cfg, "link-non-symmetric", processor.NonSymmetric, verify.NonSymmetricHeaders()); err != nil {
				return err
			}
			renderReport(out, "errors", processor.Errors, verify.ErrorHeaders())
			renderReport(out, "non-symmetric links", processor.NonSymmetric, verify.NonSymmetricHeaders())

			fmt.Fprintf(out, "verified %d links, %d errors, %d shared, %d conflicting\n",
				processor.Overview.Len(), processor.Errors.Len(),
				processor.OneToMany.Len(), processor.NonSymmetric.Len())
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log intended repairs without writing")
	cmd.Flags().BoolVar(&noResume, "no-resume", false, "Ignore the checkpoint and start from the beginning")
	cmd.Flags().StringSliceVar(&kindNames, "kind", []string{"person"}, "Record kinds to verify (person, corporation, conference)")
	return cmd
}

func loadReportIfPresent(rep *report.Report, reportDir, name string) {
	stamp := time.Now().Format("2006-01-02")
	path := filepath.Join(reportDir, fmt.Sprintf("%s-%s.json", name, stamp))
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = rep.LoadJSON(path)
}

func parseKinds(names []string) ([]authority.Kind, error) {
	var kinds []authority.Kind
	for _, name := range names {
		kind, err := authority.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
