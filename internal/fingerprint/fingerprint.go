// package fingerprint derives canonical search keys from scraped tracks.
//
// The fingerprint doubles as the Spotify search query and the match cache
// key, so both always agree on the same string.
package fingerprint

import (
	"fmt"
	"strings"

	"github.com/desertthunder/beatsync/internal/models"
)

// stopWords are removed from queries when they appear as standalone tokens.
// Each keyword is expanded into lowercase, uppercase and capitalized variants,
// with and without a period suffix.
var stopWords = mutateKeywords("&amp;", "+", "=", "'", "&", "feat", "ft", "featuring", "vs", "versus")

// bracketPairs drive the bracketed-segment strip. The scan is first-to-first,
// not balanced: the slice runs from the first opening character to the first
// closing character. Unbalanced or reversed input can over-delete; that quirk
// is intentional and covered by tests.
var bracketPairs = [][2]string{
	{"(", ")"},
	{"[", "]"},
	{"{", "}"},
}

// Build computes the fingerprint for a track: the normalized composition of
// its title and primary artist. Only the first listed artist participates.
func Build(track models.SourceTrack) string {
	return Normalize(fmt.Sprintf("%s %s", track.Title, track.PrimaryArtist()))
}

// Normalize applies the full transform: bracket stripping, stop word removal,
// comma and whitespace collapsing. It is pure, total and idempotent.
func Normalize(query string) string {
	query = stripBrackets(query)
	query = stripStopWords(query)
	query = strings.ReplaceAll(query, ", ", " ")
	return strings.Join(strings.Fields(query), " ")
}

// stripBrackets removes first-to-first bracket slices until none remain, one
// pass per pair type per iteration. Every removal shortens the string, so the
// loop terminates.
func stripBrackets(query string) string {
	for {
		stripped := query
		for _, pair := range bracketPairs {
			stripped = stripBetween(stripped, pair[0], pair[1])
		}
		if stripped == query {
			return query
		}
		query = stripped
	}
}

// stripBetween removes the slice from the first occurrence of open through the
// first occurrence of close, inclusive. If close precedes open (or either is
// missing) the input is returned unchanged.
func stripBetween(text, open, close string) string {
	first := strings.Index(text, open)
	if first < 0 {
		return text
	}
	last := strings.Index(text, close)
	if last < 0 || last < first {
		return text
	}

	seq := text[first : last+len(close)]
	return strings.ReplaceAll(text, seq, "")
}

// stripStopWords drops " word " tokens until a fixpoint, so that runs of
// adjacent stop words collapse completely and the transform stays idempotent.
// Tokens at the very start or end of the string are not surrounded by spaces
// and therefore survive.
func stripStopWords(query string) string {
	for {
		stripped := query
		for _, word := range stopWords {
			stripped = strings.ReplaceAll(stripped, " "+word+" ", " ")
		}
		if stripped == query {
			return query
		}
		query = stripped
	}
}

func mutateKeywords(keywords ...string) []string {
	var mutations []string
	for _, keyword := range keywords {
		mutations = append(mutations, mutate(keyword)...)
	}
	return mutations
}

func mutate(s string) []string {
	s = strings.ToLower(s)
	upper := strings.ToUpper(s)
	capitalized := firstCharToUpper(s)
	return []string{s, s + ".", upper, upper + ".", capitalized, capitalized + "."}
}

func firstCharToUpper(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
