package fuzzy

// YearsEqual reports whether two authority date strings agree on the year,
// comparing only the first four characters ("1974-" matches "1974-2020").
// An empty string represents a missing date: a missing date never equals a
// present one, while two missing dates compare equal. Callers that need to
// distinguish "both missing" from "both present and equal" must inspect the
// operands themselves.
func YearsEqual(a, b string) bool {
	return yearPrefix(a) == yearPrefix(b)
}

func yearPrefix(date string) string {
	if len(date) > 4 {
		return date[:4]
	}
	return date
}
