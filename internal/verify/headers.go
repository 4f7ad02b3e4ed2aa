package verify

import (
	"strconv"

	"seiso/internal/report"
)

// Column header sets for the verification reports. The one-to-many reports
// have a variable tail (one id/heading pair per linked record); their
// headers cover the widest row seen in practice and Render pads the rest.

func localHeaders(group string) []report.Header {
	return []report.Header{
		{Group: group, Label: "ID"},
		{Group: group, Label: "1XX $a"},
		{Group: group, Label: "4XX"},
		{Group: group, Label: "Sist endret"},
	}
}

func summaryHeaders(group string) []report.Header {
	return []report.Header{
		{Group: group, Label: "ID"},
		{Group: group, Label: "1XX $a"},
		{Group: group, Label: "4XX"},
		{Group: group, Label: "1XX $d"},
		{Group: group, Label: "Sist endret"},
	}
}

// OverviewHeaders describes the forward overview report.
func OverviewHeaders() []report.Header {
	headers := localHeaders("Bibbi-post")
	headers = append(headers,
		report.Header{Group: "Noraf-post", Label: "ID"},
		report.Header{Group: "Noraf-post", Label: "1XX $a"},
		report.Header{Group: "Noraf-post", Label: "4XX"},
		report.Header{Group: "Noraf-post", Label: "1XX $d"},
		report.Header{Group: "Noraf-post", Label: "Sist endret"},
		report.Header{Group: "Noraf-post", Label: "Status"},
		report.Header{Group: "Noraf-post", Label: "Origin"},
		report.Header{Group: "Noraf-post", Label: "Andre Bibbi-ID-er"},
	)
	return headers
}

// ErrorHeaders describes the forward error report.
func ErrorHeaders() []report.Header {
	headers := localHeaders("Bibbi-post")
	headers = append(headers,
		report.Header{Group: "Noraf-post", Label: "ID"},
		report.Header{Label: "Feil"},
	)
	return headers
}

// OneToManyHeaders describes the forward one-to-many report, up to n
// linked catalog records per row.
func OneToManyHeaders(n int) []report.Header {
	headers := []report.Header{
		{Group: "Noraf-post", Label: "ID"},
		{Group: "Noraf-post", Label: "1XX $a"},
	}
	return append(headers, linkedLocalHeaders(n)...)
}

// ReverseOneToManyHeaders describes the reverse one-to-many report, which
// carries the full harvest summary columns before the linked records.
func ReverseOneToManyHeaders(n int) []report.Header {
	return append(summaryHeaders("Noraf-post"), linkedLocalHeaders(n)...)
}

func linkedLocalHeaders(n int) []report.Header {
	var headers []report.Header
	for i := 1; i <= n; i++ {
		group := "Bibbi-post " + strconv.Itoa(i)
		headers = append(headers,
			report.Header{Group: group, Label: "ID"},
			report.Header{Group: group, Label: "1XX $a"},
		)
	}
	return headers
}

// NonSymmetricHeaders describes the non-symmetric link reports.
func NonSymmetricHeaders() []report.Header {
	headers := summaryHeaders("Noraf-post")
	headers = append(headers,
		report.Header{Group: "Bibbi-post", Label: "ID"},
		report.Header{Group: "Bibbi-post", Label: "1XX $a"},
		report.Header{Group: "Lenket Noraf-post", Label: "ID"},
		report.Header{Group: "Lenket Noraf-post", Label: "1XX $a"},
	)
	return headers
}

// DeadLinkHeaders describes the reverse dead-link report.
func DeadLinkHeaders() []report.Header {
	headers := summaryHeaders("Noraf-post")
	headers = append(headers,
		report.Header{Group: "Bibbi-post", Label: "ID (finnes ikke)"},
		report.Header{Label: "Forslag"},
	)
	return headers
}
