package authority

import "fmt"

// Source names the system an Identity was resolved from.
type Source string

const (
	// SourceNoraf marks an identity backed by a national registry record.
	SourceNoraf Source = "noraf"
	// SourceViaf marks a cluster-only identity with no registry record.
	SourceViaf Source = "viaf"
)

// Identity is an external authority identity proposed during matching. It is
// not necessarily a complete record; providers often return only the heading.
type Identity struct {
	Source   Source
	ID       string
	Name     string
	Dates    string
	AltNames []string
}

// RegistryBacked reports whether the identity resolves to a registry record
// rather than a bare cluster entry. Registry-backed matches terminate the
// strategy search; cluster-only matches are kept as a low-confidence fallback.
func (i Identity) RegistryBacked() bool {
	return i.Source == SourceNoraf
}

func (i Identity) String() string {
	if i.Dates != "" {
		return fmt.Sprintf("%s (%s)", i.Name, i.Dates)
	}
	return i.Name
}

// Candidate is an ephemeral match proposal produced by a candidate provider
// for one query: an external identity plus the work it was found on.
type Candidate struct {
	Person Identity
	Title  string
	ISBNs  []string
}

// MalformedResponseError signals an unparsable payload from a candidate
// provider. It is distinct from "no results": a provider returning garbage
// likely means the API contract changed, so callers treat it as fatal to the
// whole run rather than skipping the record.
type MalformedResponseError struct {
	Provider string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Provider, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
