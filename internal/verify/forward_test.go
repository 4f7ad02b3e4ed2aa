package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"seiso/internal/authority"
	"seiso/internal/bibbi"
	"seiso/internal/logging"
	"seiso/internal/noraf"
)

type registryFixture struct {
	ID         string
	Type       string
	Name       string
	Dates      string
	Deleted    bool
	ReplacedBy string
	BibbiIDs   []string
}

func (f registryFixture) build(t *testing.T) *noraf.Record {
	t.Helper()
	if f.Type == "" {
		f.Type = "PERSON"
	}
	tag := "100"
	if f.Type == "CORPORATION" {
		tag = "110"
	}
	subfields := []map[string]string{{"subcode": "a", "value": f.Name}}
	if f.Dates != "" {
		subfields = append(subfields, map[string]string{"subcode": "d", "value": f.Dates})
	}
	payload := map[string]any{
		"systemControlNumber": f.ID,
		"authorityType":       f.Type,
		"status":              "kat2",
		"origin":              "hha",
		"deleted":             f.Deleted,
		"marcdata": []map[string]any{
			{"tag": tag, "ind1": "", "ind2": "", "subfields": subfields},
		},
	}
	if f.ReplacedBy != "" {
		payload["replacedBy"] = f.ReplacedBy
	}
	if len(f.BibbiIDs) > 0 {
		payload["identifiersMap"] = map[string][]string{"bibbi": f.BibbiIDs}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	record, err := noraf.ParseRecord(data)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return record
}

// testSummary builds a search-result summary through the XML parser, the
// same way the real client produces them.
func testSummary(t *testing.T, id, name, dates string, bibbiIDs ...string) *noraf.Summary {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<record xmlns="info:lc/xmlns/marcxchange-v1">`)
	fmt.Fprintf(&b, `<controlfield tag="001">%s</controlfield>`, id)
	fmt.Fprintf(&b, `<datafield tag="100" ind1=" " ind2=" "><subfield code="a">%s</subfield>`, name)
	if dates != "" {
		fmt.Fprintf(&b, `<subfield code="d">%s</subfield>`, dates)
	}
	b.WriteString(`</datafield>`)
	for _, bibbiID := range bibbiIDs {
		fmt.Fprintf(&b, `<datafield tag="024" ind1=" " ind2=" "><subfield code="a">%s</subfield><subfield code="2">bibbi</subfield></datafield>`, bibbiID)
	}
	b.WriteString(`</record>`)
	summaries, err := noraf.ParseXML(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("parse summary fixture: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(summaries))
	}
	return summaries[0]
}

type fakeRegistry struct {
	records       map[string]*noraf.Record
	summariesByID map[string][]*noraf.Summary
	byName        map[string][]*noraf.Summary
	puts          []string
	putErr        error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		records:       map[string]*noraf.Record{},
		summariesByID: map[string][]*noraf.Summary{},
		byName:        map[string][]*noraf.Summary{},
	}
}

func (f *fakeRegistry) add(record *noraf.Record) {
	f.records[record.ID()] = record
}

func (f *fakeRegistry) clone(record *noraf.Record) (*noraf.Record, error) {
	data, err := record.AsJSON()
	if err != nil {
		return nil, err
	}
	return noraf.ParseRecord(data)
}

func (f *fakeRegistry) Get(ctx context.Context, id string) (*noraf.Record, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, noraf.ErrRecordNotFound)
	}
	return f.clone(record)
}

func (f *fakeRegistry) Put(ctx context.Context, record *noraf.Record, reason string) error {
	if f.putErr != nil {
		return f.putErr
	}
	stored, err := f.clone(record)
	if err != nil {
		return err
	}
	f.records[record.ID()] = stored
	f.puts = append(f.puts, record.ID()+": "+reason)
	return nil
}

func (f *fakeRegistry) FindByLocalID(ctx context.Context, localID string) ([]*noraf.Summary, error) {
	return f.summariesByID[localID], nil
}

func (f *fakeRegistry) FindByName(ctx context.Context, kind authority.Kind, name string) ([]*noraf.Summary, error) {
	return f.byName[name], nil
}

type fakeCatalog struct {
	records map[int64]*bibbi.Record
	links   []string
}

func newFakeCatalog(records ...*bibbi.Record) *fakeCatalog {
	catalog := &fakeCatalog{records: map[int64]*bibbi.Record{}}
	for _, record := range records {
		catalog.records[record.LocalID] = record
	}
	return catalog
}

func (f *fakeCatalog) Get(ctx context.Context, localID int64) (*bibbi.Record, error) {
	record, ok := f.records[localID]
	if !ok {
		return nil, fmt.Errorf("record %d: %w", localID, bibbi.ErrRecordNotFound)
	}
	return record, nil
}

func (f *fakeCatalog) List(ctx context.Context, kind authority.Kind, filters ...bibbi.Filter) ([]*bibbi.Record, error) {
	var out []*bibbi.Record
	for _, record := range f.records {
		if record.Kind != kind || record.ReferenceOf != 0 {
			continue
		}
		if !matchesFilters(record, filters) {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalID < out[j].LocalID })
	return out, nil
}

// matchesFilters interprets the SQL predicates the processors actually use.
func matchesFilters(record *bibbi.Record, filters []bibbi.Filter) bool {
	for _, filter := range filters {
		switch {
		case strings.Contains(filter.Expr, "!= ''"):
			if record.NorafID == "" {
				return false
			}
		case strings.HasPrefix(filter.Expr, "name IN"):
			found := false
			for _, arg := range filter.Args {
				if name, ok := arg.(string); ok && name == record.Name {
					found = true
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func (f *fakeCatalog) LinkToNoraf(ctx context.Context, record *bibbi.Record, link bibbi.NorafLink, reason string) error {
	record.NorafID = link.ID
	record.NorafStatus = link.Status
	record.NorafOrigin = link.Origin
	f.links = append(f.links, record.ID()+" -> "+link.ID+": "+reason)
	return nil
}

func (f *fakeCatalog) NorafMapping(ctx context.Context) (map[string]string, error) {
	mapping := map[string]string{}
	for _, record := range f.records {
		if record.ReferenceOf == 0 {
			mapping[record.ID()] = record.NorafID
		}
	}
	return mapping, nil
}

type fakeCheckpoint struct {
	seen    map[string]bool
	flushed bool
}

func newFakeCheckpoint(ids ...string) *fakeCheckpoint {
	cp := &fakeCheckpoint{seen: map[string]bool{}}
	for _, id := range ids {
		cp.seen[id] = true
	}
	return cp
}

func (c *fakeCheckpoint) Contains(id string) bool { return c.seen[id] }
func (c *fakeCheckpoint) Add(id string) error     { c.seen[id] = true; return nil }
func (c *fakeCheckpoint) Flush() error            { c.flushed = true; return nil }

func localPerson(id int64, norafID, name, dates string) *bibbi.Record {
	return &bibbi.Record{
		LocalID:  id,
		Kind:     authority.KindPerson,
		Name:     name,
		Dates:    dates,
		NorafID:  norafID,
		Modified: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestProcessor(registry Registry, catalog Catalog, opts ...Option) *Processor {
	opts = append([]Option{WithPause(0)}, opts...)
	return NewProcessor(registry, catalog, logging.NewNop(), opts...)
}

func runForward(t *testing.T, p *Processor) {
	t.Helper()
	if err := p.Run(context.Background(), []authority.Kind{authority.KindPerson}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestForwardCleanLink(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90564209", Name: "Hamsun, Knut", Dates: "1859-1952", BibbiIDs: []string{"10802"}}.build(t))
	catalog := newFakeCatalog(localPerson(10802, "90564209", "Hamsun, Knut", "1859-1952"))

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if len(registry.puts) != 0 {
		t.Fatalf("expected no registry writes, got %v", registry.puts)
	}
	if p.Errors.Len() != 0 {
		t.Fatalf("expected no error rows, got %v", p.Errors.Rows())
	}
	if p.Overview.Len() != 1 {
		t.Fatalf("expected one overview row, got %d", p.Overview.Len())
	}
	row := p.Overview.Rows()[0]
	if row[0] != "{BIBBI}10802" || row[4] != "{NORAF}90564209" {
		t.Fatalf("unexpected overview row: %v", row)
	}
}

func TestForwardAddsMissingReverseLink(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90564209", Name: "Hamsun, Knut"}.build(t))
	catalog := newFakeCatalog(localPerson(10802, "90564209", "Hamsun, Knut", ""))

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if len(registry.puts) != 1 {
		t.Fatalf("expected one registry write, got %v", registry.puts)
	}
	if !strings.Contains(registry.puts[0], "added catalog link") {
		t.Fatalf("unexpected write reason: %s", registry.puts[0])
	}
	ids := registry.records["90564209"].LocalIdentifiers()
	if len(ids) != 1 || ids[0] != "10802" {
		t.Fatalf("unexpected catalog links after repair: %v", ids)
	}
}

func TestForwardSecondRunIsIdempotent(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90564209", Name: "Hamsun, Knut"}.build(t))
	catalog := newFakeCatalog(localPerson(10802, "90564209", "Hamsun, Knut", ""))

	first := newTestProcessor(registry, catalog)
	runForward(t, first)
	if len(registry.puts) != 1 {
		t.Fatalf("expected the first run to repair the link, got %v", registry.puts)
	}

	second := newTestProcessor(registry, catalog)
	runForward(t, second)
	if len(registry.puts) != 1 {
		t.Fatalf("expected no writes on the second run, got %v", registry.puts)
	}
	if second.Errors.Len() != 0 || second.Overview.Len() != 1 {
		t.Fatalf("unexpected second-run reports: errors=%d overview=%d",
			second.Errors.Len(), second.Overview.Len())
	}
}

func TestForwardRemovesDuplicateLinks(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90564209", Name: "Hamsun, Knut", BibbiIDs: []string{"10802", "10802"}}.build(t))
	catalog := newFakeCatalog(localPerson(10802, "90564209", "Hamsun, Knut", ""))

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if len(registry.puts) != 1 {
		t.Fatalf("expected one registry write, got %v", registry.puts)
	}
	if !strings.Contains(registry.puts[0], "duplicate") {
		t.Fatalf("unexpected write reason: %s", registry.puts[0])
	}
	ids := registry.records["90564209"].Identifiers("bibbi")
	if len(ids) != 1 {
		t.Fatalf("expected one remaining link, got %v", ids)
	}
}

func TestForwardCollapsesMixedFormDuplicateLinks(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90000001", Name: "Hamsun, Knut",
		BibbiIDs: []string{"100", "https://id.bs.no/bibbi/100"}}.build(t))
	catalog := newFakeCatalog(localPerson(100, "90000001", "Hamsun, Knut", ""))

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if len(registry.puts) != 1 || !strings.Contains(registry.puts[0], "duplicate") {
		t.Fatalf("expected one duplicate-cleanup write, got %v", registry.puts)
	}
	ids := registry.records["90000001"].Identifiers("bibbi")
	if len(ids) != 1 || ids[0] != "https://id.bs.no/bibbi/100" {
		t.Fatalf("expected a single URI-form link, got %v", ids)
	}
	// Bare and URI forms of one id are the same record, not a shared link.
	if p.OneToMany.Len() != 0 {
		t.Fatalf("expected no one-to-many rows, got %v", p.OneToMany.Rows())
	}
}

func TestForwardFollowsReplacementPointer(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90000001", Name: "Hamsun, Knut", Deleted: true, ReplacedBy: "90564209"}.build(t))
	registry.add(registryFixture{ID: "90564209", Name: "Hamsun, Knut", Dates: "1859-1952", BibbiIDs: []string{"10802"}}.build(t))
	catalog := newFakeCatalog(localPerson(10802, "90000001", "Hamsun, Knut", "1859-1952"))

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if len(catalog.links) != 1 || !strings.Contains(catalog.links[0], "10802 -> 90564209") {
		t.Fatalf("expected the catalog link to be rewritten, got %v", catalog.links)
	}
	if !strings.Contains(catalog.links[0], "replaced by") {
		t.Fatalf("unexpected relink reason: %s", catalog.links[0])
	}
	if p.Overview.Len() != 1 {
		t.Fatalf("expected an overview row for the replacement, got %d", p.Overview.Len())
	}
	if p.Overview.Rows()[0][4] != "{NORAF}90564209" {
		t.Fatalf("overview row still names the deleted record: %v", p.Overview.Rows()[0])
	}
}

func TestForwardAmbiguousReplacement(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90000001", Name: "Hamsun, Knut", Deleted: true}.build(t))
	registry.summariesByID["10802"] = []*noraf.Summary{
		testSummary(t, "90564209", "Hamsun, Knut", "", "10802"),
		testSummary(t, "90564210", "Hamsun, Knut", "", "10802"),
	}
	catalog := newFakeCatalog(localPerson(10802, "90000001", "Hamsun, Knut", ""))

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if len(catalog.links) != 0 || len(registry.puts) != 0 {
		t.Fatalf("expected no repairs, got links=%v puts=%v", catalog.links, registry.puts)
	}
	if p.Errors.Len() != 1 || !strings.Contains(p.Errors.Rows()[0][5], "ambiguous") {
		t.Fatalf("expected an ambiguous-replacement error row, got %v", p.Errors.Rows())
	}
}

func TestForwardRediscoversByNameAndYear(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90000001", Name: "Hamsun, Knut", Deleted: true}.build(t))
	registry.add(registryFixture{ID: "90564209", Name: "Hamsun, Knut", Dates: "1859-1952"}.build(t))
	registry.byName["Hamsun, Knut"] = []*noraf.Summary{
		{ID: "90564209", Kind: authority.KindPerson, Name: "Hamsun, Knut", Dates: "1859-1952"},
		{ID: "90564299", Kind: authority.KindPerson, Name: "Hamsun, Knut", Dates: "1910-1980"},
	}
	catalog := newFakeCatalog(localPerson(10802, "90000001", "Hamsun, Knut", "1859-1952"))

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if len(catalog.links) != 1 || !strings.Contains(catalog.links[0], "10802 -> 90564209") {
		t.Fatalf("expected the link rewritten to the year-confirmed match, got %v", catalog.links)
	}
}

func TestForwardDeletedWithoutReplacement(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90000001", Name: "Hamsun, Knut", Deleted: true}.build(t))
	catalog := newFakeCatalog(localPerson(10802, "90000001", "Hamsun, Knut", "1859-1952"))

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if p.Errors.Len() != 1 {
		t.Fatalf("expected one error row, got %v", p.Errors.Rows())
	}
	if !strings.Contains(p.Errors.Rows()[0][5], "manual search required") {
		t.Fatalf("unexpected error row: %v", p.Errors.Rows()[0])
	}
}

func TestForwardTypeMismatch(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90564209", Type: "CORPORATION", Name: "Gyldendal"}.build(t))
	catalog := newFakeCatalog(localPerson(10802, "90564209", "Hamsun, Knut", ""))

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if len(registry.puts) != 0 {
		t.Fatalf("expected no repair on type mismatch, got %v", registry.puts)
	}
	if p.Errors.Len() != 1 || !strings.Contains(p.Errors.Rows()[0][5], "invalid record type: corporation") {
		t.Fatalf("expected a type-mismatch error row, got %v", p.Errors.Rows())
	}
}

func TestForwardMissingRegistryRecord(t *testing.T) {
	registry := newFakeRegistry()
	catalog := newFakeCatalog(localPerson(10802, "90564209", "Hamsun, Knut", ""))

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if p.Errors.Len() != 1 || !strings.Contains(p.Errors.Rows()[0][5], "hard-deleted") {
		t.Fatalf("expected a not-found error row, got %v", p.Errors.Rows())
	}
}

func TestForwardOneToMany(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90564209", Name: "Hamsun, Knut", BibbiIDs: []string{"10802", "10803"}}.build(t))
	catalog := newFakeCatalog(
		localPerson(10802, "90564209", "Hamsun, Knut", ""),
		localPerson(10803, "90564209", "Hamsun, Knut d.e.", ""),
	)

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	// The conflict is reported once per verified side but never repaired.
	if len(registry.puts) != 0 || len(catalog.links) != 0 {
		t.Fatalf("expected no mutations, got puts=%v links=%v", registry.puts, catalog.links)
	}
	if p.OneToMany.Len() != 2 {
		t.Fatalf("expected a one-to-many row per verified record, got %d", p.OneToMany.Len())
	}
	row := p.OneToMany.Rows()[0]
	if row[0] != "{NORAF}90564209" || row[2] != "{BIBBI}10802" || row[4] != "{BIBBI}10803" {
		t.Fatalf("unexpected one-to-many row: %v", row)
	}
}

func TestForwardBackfillsUnlinkedNeighbor(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "99064681", Name: "Hamsun, Knut", BibbiIDs: []string{"10802", "407922"}}.build(t))
	catalog := newFakeCatalog(
		localPerson(10802, "99064681", "Hamsun, Knut", ""),
		localPerson(407922, "", "Hamsun, Knut", ""),
	)

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if len(catalog.links) != 1 || !strings.Contains(catalog.links[0], "407922 -> 99064681") {
		t.Fatalf("expected the unlinked record backfilled, got %v", catalog.links)
	}
	if catalog.records[407922].NorafID != "99064681" {
		t.Fatalf("link was not persisted: %+v", catalog.records[407922])
	}
}

func TestForwardHealsLinkToDeletedRecord(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "99064681", Name: "Hamsun, Knut", BibbiIDs: []string{"10802", "407922"}}.build(t))
	registry.add(registryFixture{ID: "90000001", Name: "Hamsun, Knut", Deleted: true}.build(t))
	catalog := newFakeCatalog(
		localPerson(10802, "99064681", "Hamsun, Knut", ""),
		localPerson(407922, "90000001", "Hamsun, Knut", ""),
	)

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if catalog.records[407922].NorafID != "99064681" {
		t.Fatalf("expected the dead link healed, got %q", catalog.records[407922].NorafID)
	}
}

func TestForwardReportsNonSymmetricLiveConflict(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "99064681", Name: "Hamsun, Knut", BibbiIDs: []string{"10802", "407922"}}.build(t))
	registry.add(registryFixture{ID: "90564209", Name: "Hamsun, Knut", Dates: "1859-1952"}.build(t))
	catalog := newFakeCatalog(
		localPerson(10802, "99064681", "Hamsun, Knut", ""),
		localPerson(407922, "90564209", "Hamsun, Knut", ""),
	)

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if catalog.records[407922].NorafID != "90564209" {
		t.Fatalf("a live conflict must not be auto-resolved, got %q", catalog.records[407922].NorafID)
	}
	if p.NonSymmetric.Len() == 0 {
		t.Fatal("expected a non-symmetric report row")
	}
}

func TestForwardUpdateFailureIsContained(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90564209", Name: "Hamsun, Knut"}.build(t))
	registry.add(registryFixture{ID: "90564210", Name: "Undset, Sigrid", BibbiIDs: []string{"20001"}}.build(t))
	registry.putErr = &noraf.UpdateFailedError{RecordID: "90564209", StatusCode: 409, Message: "conflict"}
	catalog := newFakeCatalog(
		localPerson(10802, "90564209", "Hamsun, Knut", ""),
		localPerson(20001, "90564210", "Undset, Sigrid", ""),
	)

	p := newTestProcessor(registry, catalog)
	runForward(t, p)

	if p.Errors.Len() != 1 || !strings.Contains(p.Errors.Rows()[0][5], "rejected the update") {
		t.Fatalf("expected one rejected-update error row, got %v", p.Errors.Rows())
	}
	// The clean record is still verified after the failure.
	if p.Overview.Len() != 1 {
		t.Fatalf("expected the remaining record verified, got %d overview rows", p.Overview.Len())
	}
}

func TestForwardCheckpointSkipsProcessedRecords(t *testing.T) {
	registry := newFakeRegistry()
	registry.add(registryFixture{ID: "90564210", Name: "Undset, Sigrid", BibbiIDs: []string{"20001"}}.build(t))
	catalog := newFakeCatalog(
		localPerson(10802, "90564209", "Hamsun, Knut", ""),
		localPerson(20001, "90564210", "Undset, Sigrid", ""),
	)
	cp := newFakeCheckpoint("10802")

	p := newTestProcessor(registry, catalog, WithCheckpoint(cp))
	runForward(t, p)

	// 10802 points at a missing registry record; skipping it means no error row.
	if p.Errors.Len() != 0 {
		t.Fatalf("expected the checkpointed record skipped, got %v", p.Errors.Rows())
	}
	if !cp.seen["20001"] || !cp.flushed {
		t.Fatalf("expected 20001 checkpointed and the file flushed: %+v", cp)
	}
}

func TestForwardContextCancellation(t *testing.T) {
	registry := newFakeRegistry()
	catalog := newFakeCatalog(localPerson(10802, "90564209", "Hamsun, Knut", ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestProcessor(registry, catalog)
	err := p.Run(ctx, []authority.Kind{authority.KindPerson})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
