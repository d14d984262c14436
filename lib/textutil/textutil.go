package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`[\s\p{Zs}]+`)

// NormalizeTitle lowercases a song title and collapses runs of whitespace,
// full-width spaces included.
func NormalizeTitle(title string) string {
	title = strings.ToLower(title)
	title = whitespaceRegex.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}

// TitleSimilarity is the Jaro-Winkler score a title needs to count as a
// typo of the query.
const TitleSimilarity = 0.85

// MatchTitle accepts substrings of the title and titles within a small typo
// distance of the query, an empty query matches everything.
func MatchTitle(title, query string) bool {
	title = NormalizeTitle(title)
	query = NormalizeTitle(query)
	if query == "" || strings.Contains(title, query) {
		return true
	}
	return matchr.JaroWinkler(title, query, false) >= TitleSimilarity
}
