package authority

import "strings"

// LocalURIPrefix is the namespace for fully qualified Bibbi identifiers.
const LocalURIPrefix = "https://id.bs.no/bibbi/"

// LocalURI returns the canonical URI form of a Bibbi identifier. Values that
// already carry the namespace are returned unchanged.
func LocalURI(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, LocalURIPrefix) {
		return id
	}
	return LocalURIPrefix + id
}

// LocalID returns the bare numeric form of a Bibbi identifier, stripping the
// URI namespace when present. All comparisons go through this form.
func LocalID(value string) string {
	return strings.TrimPrefix(strings.TrimSpace(value), LocalURIPrefix)
}

// SameLocalID reports whether two Bibbi identifiers denote the same record,
// regardless of which of the two stored forms each uses.
func SameLocalID(a, b string) bool {
	return LocalID(a) == LocalID(b) && LocalID(a) != ""
}
