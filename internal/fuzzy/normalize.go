package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes characters and drops combining marks, so that
// "Ibañez" and "Ibanez" normalize to the same string.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var punctuationReplacer = strings.NewReplacer(",", "", ".", "", ";", "", "-", "")

// ø and æ are letters of their own, not letters with combining marks, so the
// mark fold leaves them intact. Transliterate them so "Bjørnson" and
// "Bjornson" normalize to the same string.
var letterReplacer = strings.NewReplacer("ø", "o", "æ", "ae")

// Normalize lowercases, strips diacritics, transliterates ø and æ, strips
// the punctuation characters ",.;-", and removes the English definite
// article "the ".
func Normalize(value string) string {
	folded, _, err := transform.String(foldDiacritics, value)
	if err != nil {
		folded = value
	}
	folded = strings.ToLower(folded)
	folded = letterReplacer.Replace(folded)
	folded = punctuationReplacer.Replace(folded)
	folded = strings.ReplaceAll(folded, "the ", "")
	return folded
}
