package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"seiso/internal/bibbi"
	"seiso/internal/fuzzy"
	"seiso/internal/noraf"
	"seiso/internal/notify"
	"seiso/internal/report"
)

// recordViewURL renders the public registry page for a record, for the
// notification digest.
const recordViewURL = "https://bsaut.toolforge.org/show/%s"

// ReverseProcessor runs the reverse verification: every registry record in
// the harvest that claims a catalog link is checked against the catalog.
// The catalog mapping covers all main records, so a missing key means the
// catalog record does not exist, not merely that it is unlinked.
type ReverseProcessor struct {
	registry Registry
	catalog  Catalog
	logger   *slog.Logger

	pause time.Duration
	sleep func(time.Duration)

	mapping       map[string]string
	stats         map[int]int
	notifications []notify.Notification

	DeadLinks    *report.Report
	OneToMany    *report.Report
	NonSymmetric *report.Report
}

// NewReverseProcessor builds a reverse processor.
func NewReverseProcessor(registry Registry, catalog Catalog, logger *slog.Logger, opts ...Option) *ReverseProcessor {
	options := applyOptions(opts)
	if logger == nil {
		logger = slog.Default()
	}
	return &ReverseProcessor{
		registry:     registry,
		catalog:      catalog,
		logger:       logger,
		pause:        options.pause,
		sleep:        options.sleep,
		stats:        make(map[int]int),
		DeadLinks:    report.New(),
		OneToMany:    report.New(),
		NonSymmetric: report.New(),
	}
}

// Stats returns how many harvested records carried each catalog link count.
func (p *ReverseProcessor) Stats() map[int]int {
	return p.stats
}

// Notifications returns the anomalies collected for the run digest.
func (p *ReverseProcessor) Notifications() []notify.Notification {
	return p.notifications
}

func (p *ReverseProcessor) pauseAfterRemoteCall() {
	if p.pause > 0 {
		p.sleep(p.pause)
	}
}

// Run checks every catalog-linked record found in the harvest dump under
// harvestDir. The catalog mapping is loaded once up front; the batch is
// short enough that catalog changes mid-run are not a concern.
func (p *ReverseProcessor) Run(ctx context.Context, harvestDir string, useCache bool) error {
	mapping, err := p.catalog.NorafMapping(ctx)
	if err != nil {
		return err
	}
	p.mapping = mapping

	files, err := FindHarvestFiles(harvestDir, useCache, p.logger)
	if err != nil {
		return err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		summaries, err := p.parseHarvestFile(path)
		if err != nil {
			return fmt.Errorf("parse harvest file %s: %w", path, err)
		}
		for _, summary := range summaries {
			if len(summary.LocalIdentifiers()) == 0 {
				continue
			}
			p.processSummary(ctx, summary)
		}
	}

	p.logger.Info("reverse verification done",
		slog.Int("dead_links", p.DeadLinks.Len()),
		slog.Int("one_to_many", p.OneToMany.Len()),
		slog.Int("non_symmetric", p.NonSymmetric.Len()))
	return nil
}

func (p *ReverseProcessor) parseHarvestFile(path string) ([]*noraf.Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return noraf.ParseXML(file)
}

func (p *ReverseProcessor) processSummary(ctx context.Context, summary *noraf.Summary) {
	raw := summary.Identifiers("bibbi")
	if distinct, collapsed := dedupeLocalLinks(raw); collapsed {
		p.removeDuplicateLinks(ctx, summary, distinct)
	}

	ids := dedupe(summary.LocalIdentifiers())
	p.stats[len(ids)]++

	if len(ids) > 1 {
		row := summaryColumns(summary)
		for _, id := range ids {
			row = append(row, "{BIBBI}"+id, p.localLabel(ctx, id))
		}
		p.OneToMany.AddRow(row)
	}

	for _, id := range ids {
		mapped, known := p.mapping[id]
		switch {
		case !known:
			p.processDeadLink(ctx, summary, id, ids)
		case mapped != summary.ID:
			p.processNonSymmetricLink(ctx, summary, id)
		}
	}
}

// removeDuplicateLinks rewrites the registry record so each catalog link
// appears once. The harvest summary is read-only; the mutation goes through
// a fresh fetch of the full record.
func (p *ReverseProcessor) removeDuplicateLinks(ctx context.Context, summary *noraf.Summary, distinct []string) {
	p.logger.Warn("registry record carries duplicate catalog links",
		slog.String("noraf_id", summary.ID))
	record, err := p.registry.Get(ctx, summary.ID)
	if err != nil {
		p.logger.Warn("failed to fetch registry record for duplicate cleanup",
			slog.String("noraf_id", summary.ID), slog.String("error", err.Error()))
		return
	}
	record.SetIdentifiers("bibbi", distinct)
	if err := p.registry.Put(ctx, record, "verify links: removed duplicate catalog links"); err != nil {
		p.logger.Warn("failed to remove duplicate catalog links",
			slog.String("noraf_id", summary.ID), slog.String("error", err.Error()))
		return
	}
	p.pauseAfterRemoteCall()
}

// processDeadLink handles a registry link to a catalog record that does not
// exist. When the registry record has another link that is alive, the dead
// one is dropped; when a unique catalog record matches by name and year, the
// link is rewritten to it; otherwise the case is reported with suggestions.
func (p *ReverseProcessor) processDeadLink(ctx context.Context, summary *noraf.Summary, deadID string, allIDs []string) {
	for _, other := range allIDs {
		if other == deadID {
			continue
		}
		if _, alive := p.mapping[other]; alive {
			p.removeDeadLink(ctx, summary, deadID,
				fmt.Sprintf("verify links: removed link to nonexistent catalog record %s, record %s remains", deadID, other))
			return
		}
	}

	names := append([]string{summary.Name}, summary.AltNames...)
	matches, err := p.catalog.List(ctx, summary.Kind, bibbi.MainRecordsOnly(), bibbi.NameIn(names))
	if err != nil {
		p.logger.Warn("catalog search for replacement failed",
			slog.String("noraf_id", summary.ID), slog.String("error", err.Error()))
		return
	}

	var confirmed []*bibbi.Record
	for _, match := range matches {
		if summary.Dates != "" && match.Dates != "" && fuzzy.YearsEqual(summary.Dates, match.Dates) {
			confirmed = append(confirmed, match)
		}
	}
	if len(confirmed) == 1 {
		p.relinkDeadLink(ctx, summary, deadID, confirmed[0])
		return
	}

	var suggestions []string
	for _, match := range matches {
		suggestions = append(suggestions, fmt.Sprintf("%s (%s)", match.ID(), match.Label()))
	}
	issue := "links to a nonexistent catalog record"
	details := "no catalog record matches by name"
	if len(suggestions) > 0 {
		details = "no unique name and year match"
	}
	p.DeadLinks.AddRow(append(summaryColumns(summary),
		"{BIBBI}"+deadID,
		strings.Join(suggestions, " || ")))
	p.notifications = append(p.notifications, notify.Notification{
		RecordID:    summary.ID,
		RecordLink:  fmt.Sprintf(recordViewURL, summary.ID),
		Issue:       issue,
		Details:     details,
		Suggestions: suggestions,
	})
}

func (p *ReverseProcessor) removeDeadLink(ctx context.Context, summary *noraf.Summary, deadID, reason string) {
	record, err := p.registry.Get(ctx, summary.ID)
	if err != nil {
		p.logger.Warn("failed to fetch registry record for dead link removal",
			slog.String("noraf_id", summary.ID), slog.String("error", err.Error()))
		return
	}
	if !record.RemoveLocalIdentifier(deadID) {
		return
	}
	if err := p.registry.Put(ctx, record, reason); err != nil {
		p.logger.Warn("failed to remove dead catalog link",
			slog.String("noraf_id", summary.ID), slog.String("error", err.Error()))
		return
	}
	p.pauseAfterRemoteCall()
}

// relinkDeadLink rewrites the registry link to the confirmed catalog record
// and, when that record is unlinked, backfills the catalog side too.
func (p *ReverseProcessor) relinkDeadLink(ctx context.Context, summary *noraf.Summary, deadID string, match *bibbi.Record) {
	record, err := p.registry.Get(ctx, summary.ID)
	if err != nil {
		p.logger.Warn("failed to fetch registry record for relink",
			slog.String("noraf_id", summary.ID), slog.String("error", err.Error()))
		return
	}
	record.RemoveLocalIdentifier(deadID)
	record.AddLocalIdentifier(match.ID())
	reason := fmt.Sprintf("verify links: replaced link to nonexistent catalog record %s with %s (%s)",
		deadID, match.ID(), match.Label())
	if err := p.registry.Put(ctx, record, reason); err != nil {
		p.logger.Warn("failed to rewrite dead catalog link",
			slog.String("noraf_id", summary.ID), slog.String("error", err.Error()))
		return
	}
	p.pauseAfterRemoteCall()

	if match.NorafID == "" {
		backfillReason := fmt.Sprintf("registry record %s links to this record", record.ID())
		if err := p.catalog.LinkToNoraf(ctx, match, linkFrom(record), backfillReason); err != nil {
			p.logger.Warn("failed to backfill catalog link",
				slog.String("local_id", match.ID()), slog.String("error", err.Error()))
		}
	}
}

// processNonSymmetricLink handles a registry link to a catalog record that
// exists but does not link back to this registry record. An unlinked record
// gets the link backfilled; a record linked to a dead registry record is
// healed to this live one; a record linked to another live registry record
// is only reported.
func (p *ReverseProcessor) processNonSymmetricLink(ctx context.Context, summary *noraf.Summary, id string) {
	localID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return
	}
	record, err := p.catalog.Get(ctx, localID)
	if err != nil {
		// The mapping said the record exists; the catalog changed under us.
		p.logger.Warn("mapped catalog record vanished",
			slog.String("local_id", id), slog.String("error", err.Error()))
		return
	}

	if record.NorafID == "" {
		p.backfillFromSummary(ctx, summary, record)
		return
	}

	target, err := p.registry.Get(ctx, record.NorafID)
	if err != nil {
		if errors.Is(err, noraf.ErrRecordNotFound) {
			p.healToLiveRecord(ctx, summary, record)
			return
		}
		p.logger.Warn("failed to fetch linked registry record",
			slog.String("noraf_id", record.NorafID), slog.String("error", err.Error()))
		return
	}
	if target.Deleted() {
		p.healToLiveRecord(ctx, summary, record)
		return
	}

	p.NonSymmetric.AddRow(append(summaryColumns(summary),
		"{BIBBI}"+record.ID(),
		record.Label(),
		"{NORAF}"+target.ID(),
		target.Label()))
}

func (p *ReverseProcessor) backfillFromSummary(ctx context.Context, summary *noraf.Summary, record *bibbi.Record) {
	external, err := p.registry.Get(ctx, summary.ID)
	if err != nil {
		p.logger.Warn("failed to fetch registry record for backfill",
			slog.String("noraf_id", summary.ID), slog.String("error", err.Error()))
		return
	}
	reason := fmt.Sprintf("registry record %s links to this record", external.ID())
	if err := p.catalog.LinkToNoraf(ctx, record, linkFrom(external), reason); err != nil {
		p.logger.Warn("failed to backfill catalog link",
			slog.String("local_id", record.ID()), slog.String("error", err.Error()))
	}
}

func (p *ReverseProcessor) healToLiveRecord(ctx context.Context, summary *noraf.Summary, record *bibbi.Record) {
	external, err := p.registry.Get(ctx, summary.ID)
	if err != nil {
		p.logger.Warn("failed to fetch registry record for link repair",
			slog.String("noraf_id", summary.ID), slog.String("error", err.Error()))
		return
	}
	reason := fmt.Sprintf(
		"registry record %s links to this record, while the recorded link %s is deleted or gone",
		external.ID(), record.NorafID)
	if err := p.catalog.LinkToNoraf(ctx, record, linkFrom(external), reason); err != nil {
		p.logger.Warn("failed to rewrite dead catalog link",
			slog.String("local_id", record.ID()), slog.String("error", err.Error()))
	}
}

func (p *ReverseProcessor) localLabel(ctx context.Context, id string) string {
	localID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return ""
	}
	record, err := p.catalog.Get(ctx, localID)
	if err != nil {
		return ""
	}
	return record.Label()
}
