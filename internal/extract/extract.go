// Package extract pulls location candidates out of free-form chat text: a
// postal-district token matched against a fixed vocabulary, and a street name
// anchored on German street-suffix markers. "No match" is a normal outcome,
// not an error; most messages carry no usable location.
package extract

import (
	"strconv"
	"strings"

	"github.com/pennyme/freestuff/internal/geo"
)

// streetSuffixes are the substring markers that gate street extraction.
var streetSuffixes = []string{"strasse", "straße", "gasse", "weg", "platz"}

// bareSuffixes are suffix words that can stand alone as a token when the
// street name was split by a space ("Bahnhof strasse"). "weg" is excluded: a
// bare "weg" almost always means "gone", not a street.
var bareSuffixes = map[string]bool{
	"strasse": true,
	"straße":  true,
	"gasse":   true,
	"platz":   true,
}

// normalizer replaces common separators with spaces before tokenizing.
var normalizer = strings.NewReplacer(",", " ", "\n", " ", ".", " ", "/", " ")

// Extractor scans message text against the district vocabulary. The
// vocabulary order is a deliberate match priority.
type Extractor struct {
	vocab []geo.VocabEntry
}

// New creates an extractor over the given district vocabulary.
func New(vocab []geo.VocabEntry) *Extractor {
	return &Extractor{vocab: vocab}
}

// Extract returns the canonical district name and the street candidate found
// in the text. Either or both may be empty.
func (e *Extractor) Extract(text string) (district, street string) {
	return e.District(text), Street(text)
}

// District returns the canonical name of the first vocabulary token found as
// a case-insensitive substring of the text, or "".
func (e *Extractor) District(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	for _, entry := range e.vocab {
		if strings.Contains(lower, entry.Token) {
			return entry.Canonical
		}
	}
	return ""
}

// Street returns the street candidate in the text, or "". The first
// whitespace token containing a street suffix anchors the match; a bare
// suffix token is rejoined with the preceding token, and a trailing integer
// token is appended as the house number.
func Street(text string) string {
	lower := strings.ToLower(text)
	found := false
	for _, suffix := range streetSuffixes {
		if strings.Contains(lower, suffix) {
			found = true
			break
		}
	}
	if !found {
		return ""
	}

	tokens := strings.Fields(normalizer.Replace(text))
	anchor := -1
	for i, token := range tokens {
		tokenLower := strings.ToLower(token)
		for _, suffix := range streetSuffixes {
			if strings.Contains(tokenLower, suffix) {
				anchor = i
				break
			}
		}
		if anchor >= 0 {
			break
		}
	}
	if anchor < 0 {
		return ""
	}

	anchorLower := strings.ToLower(tokens[anchor])
	if anchorLower == "weg" {
		return ""
	}

	street := tokens[anchor]
	if bareSuffixes[anchorLower] {
		if anchor == 0 {
			return ""
		}
		street = tokens[anchor-1] + " " + tokens[anchor]
	}

	if anchor+1 < len(tokens) {
		if number, err := strconv.Atoi(tokens[anchor+1]); err == nil {
			street += " " + strconv.Itoa(number)
		}
	}
	return street
}
