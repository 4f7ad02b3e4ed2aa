package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"seiso/internal/bibbi"
	"seiso/internal/logging"
	"seiso/internal/notify"
	"seiso/internal/runlock"
	"seiso/internal/verify"
)

func newVerifyReverseCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var useCache bool
	var harvestDir string

	cmd := &cobra.Command{
		Use:   "verify-reverse",
		Short: "Verify registry-to-catalog links from a harvest dump",
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
			if harvestDir == "" {
				harvestDir = cfg.Paths.HarvestDir
			}

			lock, err := runlock.Acquire(cfg.Paths.LockPath)
			if err != nil {
				if errors.Is(err, runlock.ErrAlreadyRunning) {
					return fmt.Errorf("another run holds %s, refusing to start", cfg.Paths.LockPath)
				}
				return err
			}
			defer lock.Unlock()

			runID := uuid.NewString()
			logger.Info("starting reverse link verification",
				"run_id", runID, "harvest_dir", harvestDir, "dry_run", dryRun)

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

			processor := verify.NewReverseProcessor(registry, store,
				logging.NewComponentLogger(logger, "verify"),
				verify.WithPause(ctx.registryPause()))
			if err := processor.Run(cmd.Context(), harvestDir, useCache); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := saveReport(out, cfg, "reverse-dead-links", processor.DeadLinks, verify.DeadLinkHeaders()); err != nil {
				return err
			}
			oneToManyHeaders := verify.ReverseOneToManyHeaders((widestRow(processor.OneToMany) - 5) / 2)
			if err := saveReport(out, cfg, "reverse-one-to-many", processor.OneToMany, oneToManyHeaders); err != nil {
				return err
			}
			if err := saveReport(out, cfg, "reverse-non-symmetric", processor.NonSymmetric, verify.NonSymmetricHeaders()); err != nil {
				return err
			}
			renderReport(out, "dead links", processor.DeadLinks, verify.DeadLinkHeaders())
			printLinkStats(out, processor.Stats())

			notifications := processor.Notifications()
			if len(notifications) > 0 && !dryRun {
				service := notify.NewService(cfg.Notifications)
				if err := service.SendDigest(cmd.Context(), "reverse link verification", notifications); err != nil {
					logger.Warn("failed to send notification digest", "error", err.Error())
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log intended repairs without writing")
	cmd.Flags().BoolVar(&useCache, "use-cache", false, "Reuse the harvest filelist cache when present")
	cmd.Flags().StringVar(&harvestDir, "harvest-dir", "", "Harvest dump directory (defaults to paths.harvest_dir)")
	return cmd
}

// printLinkStats summarizes how many registry records carried each number
// of catalog links.
func printLinkStats(out io.Writer, stats map[int]int) {
	if len(stats) == 0 {
		return
	}
	counts := make([]int, 0, len(stats))
	for count := range stats {
		counts = append(counts, count)
	}
	sort.Ints(counts)
	var parts []string
	for _, count := range counts {
		parts = append(parts, fmt.Sprintf("%d links: %d records", count, stats[count]))
	}
	fmt.Fprintln(out, strings.Join(parts, ", "))
}
