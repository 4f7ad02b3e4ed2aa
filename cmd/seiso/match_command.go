package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"seiso/internal/alma"
	"seiso/internal/authority"
	"seiso/internal/bibbi"
	"seiso/internal/logging"
	"seiso/internal/match"
	"seiso/internal/report"
	"seiso/internal/viaf"
)

func matchHeaders() []report.Header {
	return []report.Header{
		{Group: "Bibbi-post", Label: "ID"},
		{Group: "Bibbi-post", Label: "1XX $a"},
		{Group: "Bibbi-post", Label: "1XX $d"},
		{Label: "Strategi"},
		{Group: "Treff", Label: "Kilde"},
		{Group: "Treff", Label: "ID"},
		{Group: "Treff", Label: "1XX $a"},
		{Group: "Treff", Label: "1XX $d"},
		{Group: "Likhet", Label: "Navn"},
		{Group: "Likhet", Label: "År"},
		{Group: "Likhet", Label: "Tittel"},
	}
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find registry matches for unlinked person records",
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

			storeOpts := []bibbi.Option{}
			if dryRun {
				storeOpts = append(storeOpts, bibbi.WithReadOnly())
			}
			store, err := bibbi.Open(cfg.Paths.DatabasePath, logger, storeOpts...)
			if err != nil {
				return err
			}
			defer store.Close()

			almaClient := alma.NewClient(alma.Config{
				BaseURL:        cfg.Alma.BaseURL,
				UserAgent:      cfg.Noraf.UserAgent,
				TimeoutSeconds: cfg.Alma.TimeoutSeconds,
			}, logging.NewComponentLogger(logger, "alma"))
			viafClient := viaf.NewClient(viaf.Config{
				BaseURL:        cfg.Viaf.BaseURL,
				UserAgent:      cfg.Noraf.UserAgent,
				TimeoutSeconds: cfg.Viaf.TimeoutSeconds,
			}, logging.NewComponentLogger(logger, "viaf"))
			engine := match.NewEngine(almaClient, viafClient, logger)

			records, err := store.List(cmd.Context(), authority.KindPerson,
				bibbi.MainRecordsOnly(), bibbi.Unlinked())
			if err != nil {
				return err
			}
			records = filterByYearWindow(records, cfg.Match.YearFrom, cfg.Match.YearTo)
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			logger.Info("matching unlinked person records", "count", len(records))

			matches := report.New()
			linked := 0
			for _, record := range records {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				result, err := engine.MatchPerson(cmd.Context(), record)
				if err != nil {
					return err
				}
				if result == nil {
					continue
				}
				matches.AddRow([]string{
					"{BIBBI}" + record.ID(),
					record.Name,
					record.Dates,
					result.Strategy,
					string(result.Target.Source),
					result.Target.ID,
					result.Target.Name,
					result.Target.Dates,
					result.NameSimilarity,
					result.DateSimilarity,
					result.TitleSimilarity,
				})
				if result.Target.RegistryBacked() {
					reason := fmt.Sprintf("matched by %s (%s)", result.Strategy, result.TitleSimilarity)
					link := bibbi.NorafLink{ID: result.Target.ID}
					if err := store.LinkToNoraf(cmd.Context(), record, link, reason); err != nil {
						return err
					}
					linked++
				}
			}

			out := cmd.OutOrStdout()
			if err := saveReport(out, cfg, "authority-matches", matches, matchHeaders()); err != nil {
				return err
			}
			renderReport(out, "matches", matches, matchHeaders())
			suffix := ""
			if dryRun {
				suffix = " (dry run, no links written)"
			}
			fmt.Fprintf(out, "checked %d records, found %d matches, linked %d%s\n",
				len(records), matches.Len(), linked, suffix)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many records (0 = all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report matches without writing links")
	return cmd
}

// filterByYearWindow keeps records whose newest catalogued item was approved
// inside the configured year window. A zero bound is open.
func filterByYearWindow(records []*bibbi.Record, from, to int) []*bibbi.Record {
	if from == 0 && to == 0 {
		return records
	}
	var out []*bibbi.Record
	for _, record := range records {
		newest := record.NewestApproved()
		if newest.IsZero() {
			continue
		}
		year := newest.Year()
		if from != 0 && year < from {
			continue
		}
		if to != 0 && year > to {
			continue
		}
		out = append(out, record)
	}
	return out
}
