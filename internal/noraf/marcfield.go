package noraf

import "strings"

// Subfield is a single MARC subfield as serialized by the registry.
type Subfield struct {
	Code  string `json:"subcode"`
	Value string `json:"value"`
}

// MarcField is a MARC data field from the registry JSON representation.
type MarcField struct {
	Tag       string     `json:"tag"`
	Ind1      string     `json:"ind1"`
	Ind2      string     `json:"ind2"`
	Subfields []Subfield `json:"subfields"`
}

// NewMarcField returns a field with blank indicators.
func NewMarcField(tag string) *MarcField {
	return &MarcField{Tag: tag, Ind1: " ", Ind2: " "}
}

// Value returns the first occurrence of the subfield code.
func (f *MarcField) Value(code string) (string, bool) {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return sf.Value, true
		}
	}
	return "", false
}

// Values returns every occurrence of the subfield code, in field order.
func (f *MarcField) Values(code string) []string {
	var out []string
	for _, sf := range f.Subfields {
		if sf.Code == code {
			out = append(out, sf.Value)
		}
	}
	return out
}

// Has reports whether the subfield code occurs at least once.
func (f *MarcField) Has(code string) bool {
	_, ok := f.Value(code)
	return ok
}

// Set replaces the first occurrence of the subfield code, or appends one.
func (f *MarcField) Set(code, value string) {
	for i, sf := range f.Subfields {
		if sf.Code == code {
			f.Subfields[i].Value = value
			return
		}
	}
	f.Subfields = append(f.Subfields, Subfield{Code: code, Value: value})
}

// String renders the field in a compact $-code form for logs and reports.
func (f *MarcField) String() string {
	var b strings.Builder
	b.WriteString(f.Tag)
	for _, sf := range f.Subfields {
		b.WriteString(" $")
		b.WriteString(sf.Code)
		b.WriteString(" ")
		b.WriteString(sf.Value)
	}
	return b.String()
}

func (f *MarcField) normalizeIndicators() {
	if f.Ind1 == "" {
		f.Ind1 = " "
	}
	if f.Ind2 == "" {
		f.Ind2 = " "
	}
}
