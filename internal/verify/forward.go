package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"seiso/internal/authority"
	"seiso/internal/bibbi"
	"seiso/internal/fuzzy"
	"seiso/internal/noraf"
	"seiso/internal/report"
)

// Processor runs the forward verification: every linked catalog record is
// checked against the registry record it points at.
type Processor struct {
	registry Registry
	catalog  Catalog
	logger   *slog.Logger

	pause      time.Duration
	sleep      func(time.Duration)
	checkpoint Checkpoint

	// Overview gets one row per verified link; Errors one row per anomaly
	// that could not be repaired automatically.
	Overview     *report.Report
	Errors       *report.Report
	OneToMany    *report.Report
	NonSymmetric *report.Report
}

// Option customizes a processor.
type Option func(*processorOptions)

type processorOptions struct {
	pause      time.Duration
	sleep      func(time.Duration)
	checkpoint Checkpoint
}

// WithPause overrides the fixed post-mutation delay.
func WithPause(pause time.Duration) Option {
	return func(o *processorOptions) {
		o.pause = pause
	}
}

// WithSleeper overrides how the delay is performed (useful for tests).
func WithSleeper(sleep func(time.Duration)) Option {
	return func(o *processorOptions) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithCheckpoint makes the run resumable: processed records are skipped on
// restart.
func WithCheckpoint(checkpoint Checkpoint) Option {
	return func(o *processorOptions) {
		o.checkpoint = checkpoint
	}
}

func applyOptions(opts []Option) processorOptions {
	options := processorOptions{
		pause: defaultPause,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// NewProcessor builds a forward processor.
func NewProcessor(registry Registry, catalog Catalog, logger *slog.Logger, opts ...Option) *Processor {
	options := applyOptions(opts)
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		registry:     registry,
		catalog:      catalog,
		logger:       logger,
		pause:        options.pause,
		sleep:        options.sleep,
		checkpoint:   options.checkpoint,
		Overview:     report.New(),
		Errors:       report.New(),
		OneToMany:    report.New(),
		NonSymmetric: report.New(),
	}
}

func (p *Processor) pauseAfterRemoteCall() {
	if p.pause > 0 {
		p.sleep(p.pause)
	}
}

func (p *Processor) addErrorRow(local *bibbi.Record, norafID, message string) {
	p.Errors.AddRow(append(localColumns(local), "{NORAF}"+norafID, message))
}

// Run verifies every linked main record of the given kinds. Only run-fatal
// failures (listing the catalog, checkpoint I/O, a malformed candidate
// payload) return an error; per-record anomalies become report rows.
func (p *Processor) Run(ctx context.Context, kinds []authority.Kind) error {
	for _, kind := range kinds {
		records, err := p.catalog.List(ctx, kind, bibbi.MainRecordsOnly(), bibbi.Linked())
		if err != nil {
			return err
		}
		p.logger.Info("checking linked records",
			slog.String("kind", kind.String()),
			slog.Int("count", len(records)))

		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if p.checkpoint != nil && p.checkpoint.Contains(record.ID()) {
				continue
			}
			p.checkRecord(ctx, record)
			if p.checkpoint != nil {
				if err := p.checkpoint.Add(record.ID()); err != nil {
					return err
				}
			}
		}
	}
	if p.checkpoint != nil {
		return p.checkpoint.Flush()
	}
	return nil
}

// checkRecord fetches the registry record and runs the state machine. All
// failures are contained to the record.
func (p *Processor) checkRecord(ctx context.Context, local *bibbi.Record) {
	external, err := p.registry.Get(ctx, local.NorafID)
	if err != nil {
		if errors.Is(err, noraf.ErrRecordNotFound) {
			p.addErrorRow(local, local.NorafID, "the registry record was not found, it may have been hard-deleted")
			return
		}
		p.addErrorRow(local, local.NorafID, "failed to fetch the registry record: "+err.Error())
		return
	}
	p.verifyLink(ctx, local, external)
}

func (p *Processor) verifyLink(ctx context.Context, local *bibbi.Record, external *noraf.Record) {
	p.logger.Debug("verifying link",
		slog.String("local_id", local.ID()),
		slog.String("noraf_id", external.ID()))

	if external.Deleted() {
		replacement, ok := p.resolveReplacement(ctx, local, external)
		if !ok {
			return
		}
		external = replacement
	}

	kind, known := external.Kind()
	if !known || kind != local.Kind {
		label := "unknown"
		if known {
			label = kind.String()
		}
		p.addErrorRow(local, external.ID(), "invalid record type: "+label)
		return
	}

	var reasons []string

	if len(external.LocalIdentifiers()) == 0 {
		external.AddLocalIdentifier(local.ID())
		reasons = append(reasons, "added catalog link")
	}

	rawIDs := external.Identifiers("bibbi")
	if distinct, collapsed := dedupeLocalLinks(rawIDs); collapsed {
		p.logger.Warn("registry record carries duplicate catalog links",
			slog.String("noraf_id", external.ID()),
			slog.String("links", strings.Join(rawIDs, ", ")))
		external.SetIdentifiers("bibbi", distinct)
		reasons = append(reasons, "removed duplicate catalog links")
	}

	if external.Dirty() {
		err := p.registry.Put(ctx, external, "verify links: "+strings.Join(reasons, ", "))
		if err != nil {
			var updateErr *noraf.UpdateFailedError
			if errors.As(err, &updateErr) {
				p.addErrorRow(local, external.ID(), "the registry rejected the update: "+updateErr.Message)
				return
			}
			p.addErrorRow(local, external.ID(), "failed to update the registry record: "+err.Error())
			return
		}
		p.pauseAfterRemoteCall()
	}

	p.checkSharedLinks(ctx, local, external)

	p.Overview.AddRow(append(localColumns(local),
		"{NORAF}"+external.ID(),
		external.Name(),
		strings.Join(external.AltNames(), " || "),
		external.Dates(),
		formatDate(external.Modified()),
		external.Status(),
		external.Origin(),
		strings.Join(otherLocalIDs(external, local.ID()), " || "),
	))
}

// resolveReplacement handles a deleted registry record: follow the
// replacement pointer one hop, else search for another record claiming the
// local id, else rediscover by name and year. Returns the record to
// continue with, or false when a report row ended the record.
func (p *Processor) resolveReplacement(ctx context.Context, local *bibbi.Record, external *noraf.Record) (*noraf.Record, bool) {
	if id := external.ReplacedBy(); id != "" {
		return p.relink(ctx, local, external, id)
	}

	summaries, err := p.registry.FindByLocalID(ctx, local.ID())
	p.pauseAfterRemoteCall()
	if err != nil {
		p.addErrorRow(local, external.ID(), "the registry record was deleted; replacement search failed: "+err.Error())
		return nil, false
	}
	var claims []*noraf.Summary
	for _, summary := range summaries {
		for _, claimed := range summary.LocalIdentifiers() {
			if claimed == local.ID() {
				claims = append(claims, summary)
				break
			}
		}
	}
	switch {
	case len(claims) == 1:
		return p.relink(ctx, local, external, claims[0].ID)
	case len(claims) > 1:
		p.addErrorRow(local, external.ID(),
			"the registry record was deleted; more than one other registry record links to this record (ambiguous replacement, manual check required)")
		return nil, false
	}
	return p.rediscover(ctx, local, external)
}

// relink fetches the replacement and rewrites the catalog link to it.
func (p *Processor) relink(ctx context.Context, local *bibbi.Record, external *noraf.Record, replacementID string) (*noraf.Record, bool) {
	replacement, err := p.registry.Get(ctx, replacementID)
	if err != nil {
		p.addErrorRow(local, external.ID(),
			fmt.Sprintf("the registry record was replaced by %s, which could not be fetched: %v", replacementID, err))
		return nil, false
	}
	reason := fmt.Sprintf("registry record %s (%s) was replaced by %s (%s)",
		external.ID(), external.Label(), replacement.ID(), replacement.Label())
	p.logger.Warn("relinking replaced registry record",
		slog.String("local_id", local.ID()),
		slog.String("old_noraf_id", external.ID()),
		slog.String("new_noraf_id", replacement.ID()))
	if err := p.catalog.LinkToNoraf(ctx, local, linkFrom(replacement), reason); err != nil {
		p.addErrorRow(local, replacement.ID(), "failed to rewrite the catalog link: "+err.Error())
		return nil, false
	}
	return replacement, true
}

// rediscover searches the registry heading index when a deleted record left
// no replacement trail. A unique name+year hit is relinked automatically; a
// unique name-only hit or multiple hits become suggestions.
func (p *Processor) rediscover(ctx context.Context, local *bibbi.Record, external *noraf.Record) (*noraf.Record, bool) {
	summaries, err := p.registry.FindByName(ctx, local.Kind, local.Name)
	p.pauseAfterRemoteCall()
	if err != nil {
		p.addErrorRow(local, external.ID(), "the registry record was deleted; name search failed: "+err.Error())
		return nil, false
	}

	var nameMatches []*noraf.Summary
	for _, summary := range summaries {
		if summary.Kind != local.Kind {
			continue
		}
		if summary.Name == local.Name || containsString(summary.AltNames, local.Name) {
			nameMatches = append(nameMatches, summary)
		}
	}
	var nameDateMatches []*noraf.Summary
	for _, summary := range nameMatches {
		if local.Dates != "" && summary.Dates != "" && fuzzy.YearsEqual(local.Dates, summary.Dates) {
			nameDateMatches = append(nameDateMatches, summary)
		}
	}

	if len(nameDateMatches) == 1 {
		return p.relink(ctx, local, external, nameDateMatches[0].ID)
	}

	switch {
	case len(nameMatches) == 1:
		p.addErrorRow(local, external.ID(), fmt.Sprintf(
			"the registry record was deleted; found one registry record with the same name but no year confirmation, suggestion: %s (%s)",
			nameMatches[0].ID, nameMatches[0].Label()))
	case len(nameMatches) > 1:
		var suggestions []string
		for _, summary := range nameMatches {
			suggestions = append(suggestions, fmt.Sprintf("%s (%s)", summary.ID, summary.Label()))
		}
		p.addErrorRow(local, external.ID(),
			"the registry record was deleted; multiple registry records share the name, suggestions: "+strings.Join(suggestions, ", "))
	default:
		p.addErrorRow(local, external.ID(),
			"the registry record was deleted without forwarding the catalog link; no match by exact name search, manual search required")
	}
	return nil, false
}

// checkSharedLinks runs the per-external-record checks: one-to-many
// reporting and the three-way consistency check for every other catalog
// record the registry record claims.
func (p *Processor) checkSharedLinks(ctx context.Context, local *bibbi.Record, external *noraf.Record) {
	ids := dedupe(external.LocalIdentifiers())
	if len(ids) > 1 {
		row := append([]string(nil), "{NORAF}"+external.ID(), external.Label())
		for _, id := range ids {
			row = append(row, "{BIBBI}"+id, p.localLabel(ctx, id))
		}
		p.OneToMany.AddRow(row)
	}
	for _, id := range ids {
		if id == local.ID() {
			continue
		}
		p.checkReferencedLocal(ctx, external, id)
	}
}

func (p *Processor) localLabel(ctx context.Context, id string) string {
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

// checkReferencedLocal resolves the three-way cases for one other catalog
// record the registry record links to: backfill a missing link, self-heal
// a link to a dead record, report a live conflict.
func (p *Processor) checkReferencedLocal(ctx context.Context, external *noraf.Record, id string) {
	localID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		p.logger.Warn("registry record carries a malformed catalog id",
			slog.String("noraf_id", external.ID()), slog.String("value", id))
		return
	}
	record, err := p.catalog.Get(ctx, localID)
	if err != nil {
		if errors.Is(err, bibbi.ErrRecordNotFound) {
			// Dead links are the reverse run's task; it sees the whole
			// harvest and can search for a replacement properly.
			p.logger.Warn("registry record links to a missing catalog record",
				slog.String("noraf_id", external.ID()), slog.String("local_id", id))
			return
		}
		p.logger.Warn("failed to load referenced catalog record",
			slog.String("local_id", id), slog.String("error", err.Error()))
		return
	}

	switch {
	case record.NorafID == "":
		reason := fmt.Sprintf("registry record %s links to this record", external.ID())
		if err := p.catalog.LinkToNoraf(ctx, record, linkFrom(external), reason); err != nil {
			p.addErrorRow(record, external.ID(), "failed to backfill the catalog link: "+err.Error())
		}
	case record.NorafID == external.ID():
		// Symmetric, nothing to do.
	default:
		target, err := p.registry.Get(ctx, record.NorafID)
		if err == nil && !target.Deleted() {
			// Two live registry records claim the same catalog record.
			p.NonSymmetric.AddRow([]string{
				"{NORAF}" + external.ID(),
				external.Name(),
				strings.Join(external.AltNames(), " || "),
				external.Dates(),
				formatDate(external.Modified()),
				"{BIBBI}" + record.ID(),
				record.Label(),
				"{NORAF}" + target.ID(),
				target.Label(),
			})
			return
		}
		if err != nil && !errors.Is(err, noraf.ErrRecordNotFound) {
			p.logger.Warn("failed to fetch conflicting registry record",
				slog.String("noraf_id", record.NorafID), slog.String("error", err.Error()))
			return
		}
		reason := fmt.Sprintf(
			"registry record %s links to this record, while the recorded link %s is deleted or gone",
			external.ID(), record.NorafID)
		if err := p.catalog.LinkToNoraf(ctx, record, linkFrom(external), reason); err != nil {
			p.addErrorRow(record, external.ID(), "failed to rewrite the dead catalog link: "+err.Error())
		}
	}
}

// otherLocalIDs lists the catalog ids the registry record links to besides
// the one being verified, for the overview report.
func otherLocalIDs(external *noraf.Record, currentID string) []string {
	var out []string
	for _, id := range external.LocalIdentifiers() {
		if id != currentID {
			out = append(out, id)
		}
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func containsString(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}
