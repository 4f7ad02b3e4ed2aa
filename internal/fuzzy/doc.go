// Package fuzzy provides the locale-normalizing string similarity and
// date-overlap primitives used by every matcher.
//
// Ratio scores between 0 and 100. It deliberately takes the maximum of a
// partial ratio (best alignment of the shorter string against all substrings
// of the longer) and a token-sort ratio (comparison after sorting whitespace
// tokens), biasing toward false positives: every proposed match is confirmed
// by date or title agreement before it is accepted.
//
// Comparison is rejected outright when either normalized operand has fewer
// than three characters; short strings produce too many false positives under
// fuzzy comparison.
package fuzzy
