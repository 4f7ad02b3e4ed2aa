package fuzzy

import (
	"sort"
	"strings"
)

// minComparableLength is the shortest normalized operand Ratio will score,
// in runes.
const minComparableLength = 3

// Ratio scores the similarity of two strings between 0 and 100 after
// normalization. The second return value is false when either normalized
// operand is shorter than three characters, in which case the score carries
// no meaning and the comparison must be treated as rejected.
func Ratio(a, b string) (int, bool) {
	na := Normalize(a)
	nb := Normalize(b)
	ra := []rune(na)
	rb := []rune(nb)
	if len(ra) < minComparableLength || len(rb) < minComparableLength {
		return 0, false
	}
	partial := partialRatio(ra, rb)
	tokenSort := tokenSortRatio(na, nb)
	return max(partial, tokenSort), true
}

// ratio is the base similarity: 100 * 2*LCS / (len(a)+len(b)), equivalent to
// an edit-distance ratio where substitutions cost two.
func ratio(a, b []rune) int {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	matched := longestCommonSubsequence(a, b)
	return (200*matched + total/2) / total
}

// partialRatio aligns the shorter string against every equal-length window of
// the longer string and returns the best base ratio.
func partialRatio(a, b []rune) int {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}
	best := 0
	for start := 0; start+len(shorter) <= len(longer); start++ {
		window := longer[start : start+len(shorter)]
		if score := ratio(shorter, window); score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// tokenSortRatio compares the strings after independently sorting their
// whitespace-delimited tokens, so "hamsun knut" and "knut hamsun" score 100.
func tokenSortRatio(a, b string) int {
	return ratio([]rune(sortTokens(a)), []rune(sortTokens(b)))
}

func sortTokens(value string) string {
	tokens := strings.Fields(value)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func longestCommonSubsequence(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
