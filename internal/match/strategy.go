package match

import (
	"fmt"
	"strings"

	"seiso/internal/authority"
	"seiso/internal/bibbi"
	"seiso/internal/fuzzy"
)

// Provider and matcher ids referenced by strategy descriptors.
const (
	ProviderAlma = "alma"
	ProviderViaf = "viaf"

	MatcherISBN  = "isbn"
	MatcherTitle = "title"
)

// Strategy names, in precedence order.
const (
	StrategyISBN             = "isbn"
	StrategyCreatorTitle     = "creator+title"
	StrategyCreatorFuzzy     = "creator+fuzzy title"
	StrategyViafCreatorTitle = "viaf:creator+title"
)

// Strategy describes one way of finding candidates: which provider to ask,
// how to phrase the query and which matcher decides acceptance. Strategies
// are plain data; providers and matchers are resolved by id when the engine
// runs, so the list can be reordered or trimmed without touching code paths.
type Strategy struct {
	Name     string
	Provider string
	Query    string
	Matcher  string
}

// DefaultStrategies returns the standard precedence order: an exact ISBN
// hit outranks title matching against the union catalog, which outranks the
// global cluster search.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name:     StrategyISBN,
			Provider: ProviderAlma,
			Query:    `alma.isbn="{isbn}"`,
			Matcher:  MatcherISBN,
		},
		{
			Name:     StrategyCreatorTitle,
			Provider: ProviderAlma,
			Query:    `alma.creator="{creator}" AND alma.title="{title}"`,
			Matcher:  MatcherTitle,
		},
		{
			Name:     StrategyCreatorFuzzy,
			Provider: ProviderAlma,
			Query:    `alma.creator="{creator}"`,
			Matcher:  MatcherTitle,
		},
		{
			Name:     StrategyViafCreatorTitle,
			Provider: ProviderViaf,
			Query:    `local.personalNames="{creator}"`,
			Matcher:  MatcherTitle,
		},
	}
}

// buildQuery expands the placeholders of a strategy query template for one
// catalogued item.
func buildQuery(template string, person *bibbi.Record, item bibbi.Item) string {
	title := ""
	if len(item.Titles) > 0 {
		title = strings.TrimSpace(strings.ReplaceAll(item.Titles[0], `"`, ""))
	}
	return strings.NewReplacer(
		"{creator}", strings.TrimSpace(person.Name),
		"{title}", title,
		"{isbn}", item.ISBN,
	).Replace(template)
}

// Match is an accepted candidate: the external identity plus the similarity
// classifications that justified acceptance.
type Match struct {
	Strategy string
	Target   authority.Identity

	NameSimilarity  string
	DateSimilarity  string
	TitleSimilarity string
}

// MatcherFunc decides whether a candidate matches the catalog record for
// one of its items.
type MatcherFunc func(person *bibbi.Record, item bibbi.Item, candidate authority.Candidate, strategy Strategy) (Match, bool)

// matchNamesAndDates is the gate every matcher runs first: the candidate
// name must score 100 against the record name. The ISBN strategy loosens
// the threshold to >75, since a shared ISBN is itself strong evidence.
func matchNamesAndDates(person *bibbi.Record, candidate authority.Candidate, strategy Strategy) (Match, bool) {
	score, ok := fuzzy.Ratio(candidate.Person.Name, person.Name)
	if !ok {
		return Match{}, false
	}
	if score != 100 && !(strategy.Name == StrategyISBN && score > 75) {
		return Match{}, false
	}
	return Match{
		Strategy:       strategy.Name,
		Target:         candidate.Person,
		NameSimilarity: nameSimilarity(person.Name, candidate.Person.Name, score),
		DateSimilarity: dateSimilarity(person.Dates, candidate.Person.Dates),
	}, true
}

// titleMatcher accepts a candidate whose work title lines up with one of
// the item's titles: verbatim, normalized-equal, or fuzzy above 75.
func titleMatcher(person *bibbi.Record, item bibbi.Item, candidate authority.Candidate, strategy Strategy) (Match, bool) {
	match, ok := matchNamesAndDates(person, candidate, strategy)
	if !ok {
		return Match{}, false
	}
	for _, title := range item.Titles {
		score, ok := fuzzy.Ratio(title, candidate.Title)
		switch {
		case title == candidate.Title:
			match.TitleSimilarity = fmt.Sprintf("%q", title)
			return match, true
		case ok && score == 100:
			match.TitleSimilarity = fmt.Sprintf("partial: %q <-> %q", title, candidate.Title)
			return match, true
		case ok && score > 75:
			match.TitleSimilarity = fmt.Sprintf("fuzzy: %q <-> %q", title, candidate.Title)
			return match, true
		}
	}
	return Match{}, false
}

// isbnMatcher accepts a candidate whose work carries the item's ISBN.
func isbnMatcher(person *bibbi.Record, item bibbi.Item, candidate authority.Candidate, strategy Strategy) (Match, bool) {
	match, ok := matchNamesAndDates(person, candidate, strategy)
	if !ok {
		return Match{}, false
	}
	isbn := strings.ReplaceAll(item.ISBN, "-", "")
	if isbn == "" {
		return Match{}, false
	}
	for _, candidateISBN := range candidate.ISBNs {
		if strings.ReplaceAll(candidateISBN, "-", "") == isbn {
			match.TitleSimilarity = "isbn: " + isbn
			return match, true
		}
	}
	return Match{}, false
}

// matchers is the fixed registry matcher ids resolve through.
var matchers = map[string]MatcherFunc{
	MatcherISBN:  isbnMatcher,
	MatcherTitle: titleMatcher,
}
