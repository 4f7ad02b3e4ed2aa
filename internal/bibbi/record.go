package bibbi

import (
	"fmt"
	"strconv"
	"time"

	"seiso/internal/authority"
)

// Reference is an alternate-name record pointing at a main authority record.
type Reference struct {
	LocalID int64
	Name    string
}

// Item is a catalogued work attached to an authority record, carried for
// matching: the ISBN and known titles feed the candidate strategies.
type Item struct {
	ISBN       string
	Titles     []string
	ApprovedAt time.Time
}

// NorafLink carries the external-record fields copied onto a local record
// when a link is established.
type NorafLink struct {
	ID          string
	Status      string
	Origin      string
	Nationality string
}

// Record is a local catalog authority record.
type Record struct {
	LocalID     int64
	Kind        authority.Kind
	Name        string
	Dates       string
	Nationality string
	NorafID     string
	NorafStatus string
	NorafOrigin string
	ReferenceOf int64
	Approved    bool
	Created     time.Time
	Modified    time.Time
	References  []Reference
	Items       []Item
}

// ID returns the record identifier in its bare string form.
func (r *Record) ID() string {
	return strconv.FormatInt(r.LocalID, 10)
}

// URI returns the canonical URI form of the record identifier.
func (r *Record) URI() string {
	return authority.LocalURI(r.ID())
}

// Label returns the display heading, with dates when present.
func (r *Record) Label() string {
	if r.Dates != "" {
		return fmt.Sprintf("%s (%s)", r.Name, r.Dates)
	}
	return r.Name
}

// ReferenceLabels returns the labels of the alternate-name records pointing
// at this record.
func (r *Record) ReferenceLabels() []string {
	labels := make([]string, 0, len(r.References))
	for _, ref := range r.References {
		labels = append(labels, ref.Name)
	}
	return labels
}

// NewestApproved returns the approval time of the newest item, or the zero
// time when the record has no items.
func (r *Record) NewestApproved() time.Time {
	var newest time.Time
	for _, item := range r.Items {
		if item.ApprovedAt.After(newest) {
			newest = item.ApprovedAt
		}
	}
	return newest
}
