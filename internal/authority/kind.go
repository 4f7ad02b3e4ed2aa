package authority

import (
	"fmt"
	"strings"
)

// Kind identifies the kind of authority record. It is a closed set; the
// registry only round-trips persons, corporations and conferences, while the
// local catalog also carries genre authorities that never sync outward.
type Kind string

const (
	KindPerson      Kind = "person"
	KindCorporation Kind = "corporation"
	KindConference  Kind = "conference"
	KindGenre       Kind = "genre"
)

// registry authorityType values for the kinds Noraf understands.
const (
	registryTypePerson      = "PERSON"
	registryTypeCorporation = "CORPORATION"
	registryTypeConference  = "CONFERENCE"
)

// ParseKind maps a stored kind string to a Kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindPerson:
		return KindPerson, nil
	case KindCorporation:
		return KindCorporation, nil
	case KindConference:
		return KindConference, nil
	case KindGenre:
		return KindGenre, nil
	}
	return "", fmt.Errorf("unknown authority kind %q", value)
}

// KindFromRegistryType maps a Noraf authorityType value to a Kind.
func KindFromRegistryType(value string) (Kind, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case registryTypePerson:
		return KindPerson, true
	case registryTypeCorporation:
		return KindCorporation, true
	case registryTypeConference:
		return KindConference, true
	}
	return "", false
}

// RegistryType returns the Noraf authorityType for the kind, or false for
// kinds the registry does not carry.
func (k Kind) RegistryType() (string, bool) {
	switch k {
	case KindPerson:
		return registryTypePerson, true
	case KindCorporation:
		return registryTypeCorporation, true
	case KindConference:
		return registryTypeConference, true
	}
	return "", false
}

// MainTag returns the MARC 1XX tag carrying the authorized heading for the
// kind, or false for kinds without an agreed tag.
func (k Kind) MainTag() (string, bool) {
	switch k {
	case KindPerson:
		return "100", true
	case KindCorporation:
		return "110", true
	case KindConference:
		return "111", true
	}
	return "", false
}

func (k Kind) String() string {
	return string(k)
}
