package verify

import (
	"context"
	"strings"
	"time"

	"seiso/internal/authority"
	"seiso/internal/bibbi"
	"seiso/internal/noraf"
)

// defaultPause is the fixed delay after every remote registry mutation or
// search. The registry asks batch clients to stay around this rate; the
// delay is deliberately constant, not adaptive.
const defaultPause = 10 * time.Second

// Registry is the external registry surface the processors need.
type Registry interface {
	Get(ctx context.Context, id string) (*noraf.Record, error)
	Put(ctx context.Context, record *noraf.Record, reason string) error
	FindByLocalID(ctx context.Context, localID string) ([]*noraf.Summary, error)
	FindByName(ctx context.Context, kind authority.Kind, name string) ([]*noraf.Summary, error)
}

// Catalog is the local catalog surface the processors need.
type Catalog interface {
	Get(ctx context.Context, localID int64) (*bibbi.Record, error)
	List(ctx context.Context, kind authority.Kind, filters ...bibbi.Filter) ([]*bibbi.Record, error)
	LinkToNoraf(ctx context.Context, record *bibbi.Record, link bibbi.NorafLink, reason string) error
	NorafMapping(ctx context.Context) (map[string]string, error)
}

// Checkpoint tracks which records a run has already processed.
type Checkpoint interface {
	Contains(id string) bool
	Add(id string) error
	Flush() error
}

// linkFrom builds the catalog-side link fields from a registry record.
func linkFrom(record *noraf.Record) bibbi.NorafLink {
	return bibbi.NorafLink{
		ID:          record.ID(),
		Status:      record.Status(),
		Origin:      record.Origin(),
		Nationality: record.Nationality(),
	}
}

// localColumns renders the catalog-side report columns shared by the
// forward reports: id, heading, references, last change.
func localColumns(record *bibbi.Record) []string {
	modified := ""
	if !record.Modified.IsZero() {
		modified = record.Modified.Format("2006-01-02")
	}
	return []string{
		"{BIBBI}" + record.ID(),
		record.Label(),
		strings.Join(record.ReferenceLabels(), " || "),
		modified,
	}
}

// summaryColumns renders the registry-side report columns shared by the
// reverse reports.
func summaryColumns(summary *noraf.Summary) []string {
	modified := ""
	if !summary.Modified.IsZero() {
		modified = summary.Modified.Format("2006-01-02")
	}
	return []string{
		"{NORAF}" + summary.ID,
		summary.Name,
		strings.Join(summary.AltNames, " || "),
		summary.Dates,
		modified,
	}
}

// dedupe removes exact string duplicates, keeping first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// dedupeLocalLinks collapses a stored catalog link list to one entry per
// distinct record: the same id in bare and URI form counts once. When
// anything collapses, the survivors are rewritten to URI form, the canonical
// form for writes. Reports whether the list changed.
func dedupeLocalLinks(values []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		id := authority.LocalID(value)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, value)
	}
	if len(out) == len(values) {
		return values, false
	}
	for i := range out {
		out[i] = authority.LocalURI(out[i])
	}
	return out, true
}
