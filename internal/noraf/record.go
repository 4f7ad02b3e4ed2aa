package noraf

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"seiso/internal/authority"
)

// Record wraps a registry authority record in its JSON representation.
// Fields the engine does not model are preserved verbatim and travel back
// to the registry unchanged on Put.
type Record struct {
	raw    map[string]json.RawMessage
	fields []*MarcField
	ids    map[string][]string

	id         string
	kind       authority.Kind
	kindKnown  bool
	status     string
	origin     string
	deleted    bool
	replacedBy string

	dirty bool
}

// NewRecord builds an empty record of the kind for posting to the registry.
// The control number is assigned by the registry on create.
func NewRecord(kind authority.Kind) (*Record, error) {
	registryType, ok := kind.RegistryType()
	if !ok {
		return nil, fmt.Errorf("the registry does not carry %s authorities", kind)
	}
	return &Record{
		raw: map[string]json.RawMessage{
			"authorityType": json.RawMessage(strconv.Quote(registryType)),
		},
		ids:       map[string][]string{},
		kind:      kind,
		kindKnown: true,
		dirty:     true,
	}, nil
}

// AddField appends a MARC data field.
func (r *Record) AddField(field *MarcField) {
	field.normalizeIndicators()
	r.fields = append(r.fields, field)
	r.dirty = true
}

// ParseRecord decodes a registry JSON payload.
func ParseRecord(data []byte) (*Record, error) {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode noraf record: %w", err)
	}
	rec := &Record{raw: raw, ids: map[string][]string{}}
	id, err := rawString(raw, "systemControlNumber")
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("noraf record is missing systemControlNumber")
	}
	rec.id = id
	if authorityType, err := rawString(raw, "authorityType"); err == nil {
		rec.kind, rec.kindKnown = authority.KindFromRegistryType(authorityType)
	}
	rec.status, _ = rawString(raw, "status")
	rec.origin, _ = rawString(raw, "origin")
	if replacedBy, err := rawString(raw, "replacedBy"); err == nil && replacedBy != "0" {
		rec.replacedBy = replacedBy
	}
	if deleted, ok := raw["deleted"]; ok {
		if err := json.Unmarshal(deleted, &rec.deleted); err != nil {
			return nil, fmt.Errorf("noraf record %s: invalid deleted flag: %w", rec.id, err)
		}
	}
	if marcdata, ok := raw["marcdata"]; ok {
		if err := json.Unmarshal(marcdata, &rec.fields); err != nil {
			return nil, fmt.Errorf("noraf record %s: invalid marcdata: %w", rec.id, err)
		}
		for _, f := range rec.fields {
			f.normalizeIndicators()
		}
	}
	if idMap, ok := raw["identifiersMap"]; ok {
		if err := json.Unmarshal(idMap, &rec.ids); err != nil {
			return nil, fmt.Errorf("noraf record %s: invalid identifiersMap: %w", rec.id, err)
		}
	}
	return rec, nil
}

// rawString reads a scalar JSON member as a string. The registry serializes
// some numeric-looking members (the control number among them) as either a
// number or a string depending on the endpoint.
func rawString(raw map[string]json.RawMessage, key string) (string, error) {
	value, ok := raw[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	var decoded any
	if err := json.Unmarshal(value, &decoded); err != nil {
		return "", fmt.Errorf("invalid %s: %w", key, err)
	}
	switch v := decoded.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("invalid %s: unexpected type %T", key, decoded)
	}
}

// ID returns the registry control number.
func (r *Record) ID() string { return r.id }

// Kind returns the authority kind, when the registry type is one the
// engine models.
func (r *Record) Kind() (authority.Kind, bool) { return r.kind, r.kindKnown }

// Deleted reports whether the record carries the registry deletion flag.
func (r *Record) Deleted() bool { return r.deleted }

// ReplacedBy returns the control number of the superseding record, or ""
// when the record has not been merged away.
func (r *Record) ReplacedBy() string { return r.replacedBy }

// Status returns the registry cataloguing status code.
func (r *Record) Status() string { return r.status }

// Origin returns the registry origin code.
func (r *Record) Origin() string { return r.origin }

// Modified returns the last registry update time, zero when absent.
func (r *Record) Modified() time.Time {
	return r.rawTime("lastUpdateDate")
}

// Created returns the registry creation time, zero when absent.
func (r *Record) Created() time.Time {
	return r.rawTime("createdDate")
}

func (r *Record) rawTime(key string) time.Time {
	value, err := rawString(r.raw, key)
	if err != nil || len(value) < 10 {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", value[:10])
	if err != nil {
		return time.Time{}
	}
	return t
}

// Fields returns every MARC field with the tag, in record order. The fields
// are live views; edits made through them bypass the dirty flag, so mutate
// headings through SetFieldValue instead.
func (r *Record) Fields(tag string) []*MarcField {
	var out []*MarcField
	for _, f := range r.fields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// Field returns the first MARC field with the tag.
func (r *Record) Field(tag string) (*MarcField, bool) {
	for _, f := range r.fields {
		if f.Tag == tag {
			return f, true
		}
	}
	return nil, false
}

// SetFieldValue writes a subfield on the first field with the tag, creating
// the field when absent, and marks the record dirty so the change survives
// the Dirty guard on Put.
func (r *Record) SetFieldValue(tag, code, value string) {
	field, ok := r.Field(tag)
	if !ok {
		field = NewMarcField(tag)
		r.AddField(field)
	}
	field.Set(code, value)
	r.dirty = true
}

func (r *Record) mainField() (*MarcField, bool) {
	if !r.kindKnown {
		return nil, false
	}
	tag, ok := r.kind.MainTag()
	if !ok {
		return nil, false
	}
	return r.Field(tag)
}

// Name returns the authorized heading from the 1XX field.
func (r *Record) Name() string {
	f, ok := r.mainField()
	if !ok {
		return ""
	}
	name, _ := f.Value("a")
	return name
}

// Dates returns the lifespan subfield of the heading, if any.
func (r *Record) Dates() string {
	f, ok := r.mainField()
	if !ok {
		return ""
	}
	dates, _ := f.Value("d")
	return dates
}

// AltNames returns the variant headings from the 4XX fields.
func (r *Record) AltNames() []string {
	if !r.kindKnown {
		return nil
	}
	mainTag, ok := r.kind.MainTag()
	if !ok {
		return nil
	}
	altTag := "4" + mainTag[1:]
	var out []string
	for _, f := range r.Fields(altTag) {
		if name, ok := f.Value("a"); ok && name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Nationality returns the national-bibliography nationality code from the
// 386 field tagged with the bs-nasj vocabulary.
func (r *Record) Nationality() string {
	for _, f := range r.Fields("386") {
		if voc, ok := f.Value("2"); ok && voc == "bs-nasj" {
			value, _ := f.Value("a")
			return value
		}
	}
	return ""
}

// Identity returns the record as a registry-backed identity for matching
// and report rendering.
func (r *Record) Identity() authority.Identity {
	return authority.Identity{
		Source:   authority.SourceNoraf,
		ID:       r.id,
		Name:     r.Name(),
		Dates:    r.Dates(),
		AltNames: r.AltNames(),
	}
}

// Label renders "Name (dates)" for reports.
func (r *Record) Label() string {
	return r.Identity().String()
}

// Identifiers returns the raw identifier values for a vocabulary.
func (r *Record) Identifiers(vocabulary string) []string {
	values := r.ids[vocabulary]
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// SetIdentifiers replaces the identifier list for a vocabulary. An empty
// list removes the vocabulary entry. Reports whether anything changed.
func (r *Record) SetIdentifiers(vocabulary string, values []string) bool {
	if stringSlicesEqual(r.ids[vocabulary], values) {
		return false
	}
	if len(values) == 0 {
		delete(r.ids, vocabulary)
	} else {
		r.ids[vocabulary] = append([]string(nil), values...)
	}
	r.dirty = true
	return true
}

// AddIdentifier appends a value to a vocabulary unless already present.
func (r *Record) AddIdentifier(vocabulary, value string) bool {
	for _, existing := range r.ids[vocabulary] {
		if existing == value {
			return false
		}
	}
	r.ids[vocabulary] = append(r.ids[vocabulary], value)
	r.dirty = true
	return true
}

// RemoveIdentifier removes every literal occurrence of a value. Reports
// whether anything was removed.
func (r *Record) RemoveIdentifier(vocabulary, value string) bool {
	return r.removeIdentifierFunc(vocabulary, func(existing string) bool {
		return existing == value
	})
}

func (r *Record) removeIdentifierFunc(vocabulary string, match func(string) bool) bool {
	existing := r.ids[vocabulary]
	kept := existing[:0:0]
	for _, value := range existing {
		if !match(value) {
			kept = append(kept, value)
		}
	}
	if len(kept) == len(existing) {
		return false
	}
	if len(kept) == 0 {
		delete(r.ids, vocabulary)
	} else {
		r.ids[vocabulary] = kept
	}
	r.dirty = true
	return true
}

// localVocabulary is the identifiersMap key used for catalog links.
const localVocabulary = "bibbi"

// LocalIdentifiers returns the linked catalog record IDs in bare numeric
// form, regardless of whether the registry stores them as URIs.
func (r *Record) LocalIdentifiers() []string {
	var out []string
	for _, value := range r.ids[localVocabulary] {
		out = append(out, authority.LocalID(value))
	}
	return out
}

// HasLocalIdentifier reports whether the record links to the catalog
// record, in either bare or URI form.
func (r *Record) HasLocalIdentifier(id string) bool {
	for _, value := range r.ids[localVocabulary] {
		if authority.SameLocalID(value, id) {
			return true
		}
	}
	return false
}

// AddLocalIdentifier links the record to a catalog record. New links are
// stored in URI form.
func (r *Record) AddLocalIdentifier(id string) bool {
	if r.HasLocalIdentifier(id) {
		return false
	}
	return r.AddIdentifier(localVocabulary, authority.LocalURI(id))
}

// RemoveLocalIdentifier removes the catalog link in whichever form it is
// stored. Reports whether anything was removed.
func (r *Record) RemoveLocalIdentifier(id string) bool {
	return r.removeIdentifierFunc(localVocabulary, func(existing string) bool {
		return authority.SameLocalID(existing, id)
	})
}

// Dirty reports whether the record has unsaved mutations.
func (r *Record) Dirty() bool { return r.dirty }

func (r *Record) markClean() { r.dirty = false }

// AsJSON serializes the record back to the registry representation,
// folding mutated fields and identifiers into the preserved payload.
func (r *Record) AsJSON() ([]byte, error) {
	marcdata, err := json.Marshal(r.fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode marcdata for record %s: %w", r.id, err)
	}
	r.raw["marcdata"] = marcdata
	ids, err := json.Marshal(r.ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode identifiersMap for record %s: %w", r.id, err)
	}
	r.raw["identifiersMap"] = ids
	return json.Marshal(r.raw)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
