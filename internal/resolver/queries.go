// Package resolver resolves canonical building records to coordinates via
// the external geocoding service.
package resolver

import (
	"strings"
	"unicode"

	"github.com/cityatlas/resolver-cli/internal/config"
	"github.com/cityatlas/resolver-cli/internal/model"
)

// BuildQueries expands one record into an ordered, deduplicated list of
// candidate geocoding queries. Every query is non-empty, free of the
// multi-segment separator, and carries city/country context. Order matters:
// the resolver breaks score ties by candidate position.
func BuildQueries(rec model.Record, rules config.StreetRules, city config.CityConfig) []string {
	var raw []string

	raw = append(raw, splitSegments(rec.PrimaryAddress)...)
	for _, p := range rec.AddressParts {
		if p.Normalized != "" {
			raw = append(raw, splitSegments(p.Normalized)...)
		} else {
			raw = append(raw, splitSegments(p.Raw)...)
		}
	}
	raw = append(raw, splitSegments(rec.RawAddress)...)

	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		s = withCityContext(s, city)
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}

	for _, s := range raw {
		add(s)
		if rewritten, ok := RewriteColloquialStreet(s, rules); ok {
			add(rewritten)
		}
	}

	return out
}

// splitSegments splits a possibly multi-segment address on "/" and trims the
// pieces, dropping empties.
func splitSegments(addr string) []string {
	var out []string
	for _, seg := range strings.Split(addr, "/") {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// withCityContext appends the city and country when the candidate does not
// already name the city, so every query is geographically grounded.
func withCityContext(addr string, city config.CityConfig) string {
	if city.Name == "" {
		return addr
	}
	if strings.Contains(strings.ToLower(addr), strings.ToLower(city.Name)) {
		return addr
	}
	ctx := city.Name
	if city.Country != "" {
		ctx += ", " + city.Country
	}
	return addr + ", " + ctx
}

// RewriteColloquialStreet inserts the configured street word into a lone
// colloquial street name ("Brīvības 10" → "Brīvības iela 10"). The rewrite
// fires only when the name is a single word before the house number, ends in
// a recognized adjectival/genitive suffix, carries no street-type word, and
// does not end in an excluded noun-forming suffix. Narrow on purpose: the
// rule table is configuration pending linguistic review.
func RewriteColloquialStreet(addr string, rules config.StreetRules) (string, bool) {
	if rules.InsertWord == "" || len(rules.Suffixes) == 0 {
		return "", false
	}

	tokens := strings.Fields(addr)
	houseIdx := -1
	for i, tok := range tokens {
		if startsWithDigit(tok) {
			houseIdx = i
			break
		}
	}
	// Exactly one name token before the house number.
	if houseIdx != 1 {
		return "", false
	}

	name := strings.TrimRight(tokens[0], ",")
	lower := strings.ToLower(name)

	for _, w := range rules.StreetWords {
		if containsWord(strings.ToLower(addr), strings.ToLower(w)) {
			return "", false
		}
	}
	for _, suf := range rules.ExcludeSuffixes {
		if strings.HasSuffix(lower, strings.ToLower(suf)) {
			return "", false
		}
	}

	matched := false
	for _, suf := range rules.Suffixes {
		if strings.HasSuffix(lower, strings.ToLower(suf)) {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}

	rewritten := append([]string{name, rules.InsertWord}, tokens[houseIdx:]...)
	return strings.Join(rewritten, " "), true
}

func startsWithDigit(s string) bool {
	for _, r := range s {
		return unicode.IsDigit(r)
	}
	return false
}

// containsWord checks for needle bounded by non-letter runes.
func containsWord(text, needle string) bool {
	if needle == "" || text == "" {
		return false
	}
	runes := []rune(text)
	nrunes := []rune(needle)
	for i := 0; i+len(nrunes) <= len(runes); i++ {
		if string(runes[i:i+len(nrunes)]) != string(nrunes) {
			continue
		}
		leftOK := i == 0 || !unicode.IsLetter(runes[i-1])
		right := i + len(nrunes)
		rightOK := right == len(runes) || !unicode.IsLetter(runes[right])
		if leftOK && rightOK {
			return true
		}
	}
	return false
}
