package match

import (
	"fmt"

	"seiso/internal/fuzzy"
)

// Name similarity classifications.
const (
	NameExact   = "exact"
	NamePartial = "partial"
)

// Date similarity classifications. Reviewers read these off the match
// report, so missing-on-one-side is called out per side.
const (
	DateEqual          = "equal"
	DateConflict       = "conflict"
	DateMissingBoth    = "missing"
	DateMissingLocal   = "missing in bibbi"
	DateMissingInNoraf = "missing in noraf"
)

func nameSimilarity(localName, candidateName string, score int) string {
	if localName == candidateName {
		return NameExact
	}
	if score == 100 {
		return NamePartial
	}
	return fmt.Sprintf("fuzzy: %d", score)
}

func dateSimilarity(localDates, candidateDates string) string {
	if fuzzy.YearsEqual(localDates, candidateDates) {
		if localDates == "" {
			return DateMissingBoth
		}
		return DateEqual
	}
	switch {
	case localDates != "" && candidateDates != "":
		return DateConflict
	case localDates == "":
		return DateMissingLocal
	default:
		return DateMissingInNoraf
	}
}
