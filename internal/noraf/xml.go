package noraf

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"seiso/internal/authority"
)

// marcxchangeNS is the namespace of MARC records inside SRU responses and
// OAI-PMH harvest files.
const marcxchangeNS = "info:lc/xmlns/marcxchange-v1"

// Summary is the lightweight record view parsed from MARCXML. It carries
// enough of the record to verify links and render reports without a round
// trip to the REST API.
type Summary struct {
	ID       string
	Kind     authority.Kind
	Name     string
	Dates    string
	AltNames []string
	Modified time.Time

	// identifiers maps vocabulary to raw values from the 024 fields.
	identifiers map[string][]string
}

// Identity returns the summary as a registry-backed identity.
func (s *Summary) Identity() authority.Identity {
	return authority.Identity{
		Source:   authority.SourceNoraf,
		ID:       s.ID,
		Name:     s.Name,
		Dates:    s.Dates,
		AltNames: s.AltNames,
	}
}

// Label renders "Name (dates)" for reports.
func (s *Summary) Label() string {
	return s.Identity().String()
}

// Identifiers returns the raw identifier values for a vocabulary.
func (s *Summary) Identifiers(vocabulary string) []string {
	return s.identifiers[vocabulary]
}

// LocalIdentifiers returns linked catalog record IDs in bare numeric form.
func (s *Summary) LocalIdentifiers() []string {
	var out []string
	for _, value := range s.identifiers[localVocabulary] {
		out = append(out, authority.LocalID(value))
	}
	return out
}

// OtherIdentifiers returns every non-catalog vocabulary and its values,
// used by the link overview to show what else a record points at.
func (s *Summary) OtherIdentifiers() map[string][]string {
	out := map[string][]string{}
	for vocabulary, values := range s.identifiers {
		if vocabulary == localVocabulary {
			continue
		}
		out[vocabulary] = values
	}
	return out
}

type xmlSubfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

type xmlDataField struct {
	Tag       string        `xml:"tag,attr"`
	Subfields []xmlSubfield `xml:"subfield"`
}

type xmlControlField struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

type xmlRecord struct {
	ControlFields []xmlControlField `xml:"controlfield"`
	DataFields    []xmlDataField    `xml:"datafield"`
}

func (r *xmlRecord) controlValue(tag string) string {
	for _, f := range r.ControlFields {
		if f.Tag == tag {
			return strings.TrimSpace(f.Value)
		}
	}
	return ""
}

func (f *xmlDataField) value(code string) string {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return strings.TrimSpace(sf.Value)
		}
	}
	return ""
}

// ParseXML scans a MARCXML document for authority records and returns a
// summary per record of a supported kind. Records of other kinds (titles,
// topical terms) are skipped. The document may be a bare record, an SRU
// searchRetrieve response, or an OAI-PMH harvest page.
func ParseXML(r io.Reader) ([]*Summary, error) {
	decoder := xml.NewDecoder(r)
	var out []*Summary
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse marcxchange document: %w", err)
		}
		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "record" || start.Name.Space != marcxchangeNS {
			continue
		}
		var record xmlRecord
		if err := decoder.DecodeElement(&record, &start); err != nil {
			return nil, fmt.Errorf("failed to parse marcxchange record: %w", err)
		}
		summary, err := summarize(&record)
		if err != nil {
			return nil, err
		}
		if summary != nil {
			out = append(out, summary)
		}
	}
}

func summarize(record *xmlRecord) (*Summary, error) {
	var kind authority.Kind
	var main *xmlDataField
	for _, tag := range []struct {
		tag  string
		kind authority.Kind
	}{
		{"100", authority.KindPerson},
		{"110", authority.KindCorporation},
		{"111", authority.KindConference},
	} {
		for i := range record.DataFields {
			if record.DataFields[i].Tag == tag.tag {
				kind = tag.kind
				main = &record.DataFields[i]
				break
			}
		}
		if main != nil {
			break
		}
	}
	if main == nil {
		return nil, nil
	}

	id := record.controlValue("001")
	if id == "" {
		return nil, fmt.Errorf("marcxchange record is missing control number")
	}

	summary := &Summary{
		ID:          id,
		Kind:        kind,
		Name:        main.value("a"),
		Dates:       main.value("d"),
		identifiers: map[string][]string{},
	}

	mainTag, _ := kind.MainTag()
	altTag := "4" + mainTag[1:]
	for i := range record.DataFields {
		f := &record.DataFields[i]
		switch f.Tag {
		case altTag:
			if name := f.value("a"); name != "" {
				summary.AltNames = append(summary.AltNames, name)
			}
		case "024":
			vocabulary := f.value("2")
			value := f.value("a")
			if vocabulary == "" || value == "" {
				continue
			}
			if vocabulary == "hdl" {
				vocabulary = "handle"
			}
			summary.identifiers[vocabulary] = append(summary.identifiers[vocabulary], value)
		}
	}

	if stamp := record.controlValue("005"); len(stamp) >= 8 {
		if t, err := time.Parse("20060102", stamp[:8]); err == nil {
			summary.Modified = t
		}
	}
	return summary, nil
}
