package extraction

import (
	"regexp"
	"strings"
)

var sectionKeywords = []string{"requires", "ensures", "decreases", "recommends"}

var keywordPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(sectionKeywords))
	for _, kw := range sectionKeywords {
		m[kw] = regexp.MustCompile(`\b` + kw + `\b`)
	}
	return m
}()

// RegexExtractor takes the header text up to the first opening brace and
// splits each clause section on every comma. Commas nested in calls or
// binders split clauses too.
type RegexExtractor struct{}

// NewRegexExtractor creates a RegexExtractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Name returns "regex".
func (e *RegexExtractor) Name() string {
	return EngineRegex
}

// Extract implements ClauseExtractor. It never fails.
func (e *RegexExtractor) Extract(content, function string) (Specs, error) {
	loc := declPattern(function).FindStringIndex(content)
	if loc == nil {
		return Specs{}, nil
	}
	specs := Specs{Line: lineOf(content, loc[0])}

	brace := strings.Index(content[loc[0]:], "{")
	if brace < 0 {
		return specs, nil
	}
	header := content[loc[0] : loc[0]+brace]

	specs.Requires = regexSection(header, "requires")
	specs.Ensures = regexSection(header, "ensures")
	specs.Decreases = regexSection(header, "decreases")
	return specs, nil
}

// regexSection returns the comma separated clauses following keyword, up to
// the next section keyword.
func regexSection(header, keyword string) []string {
	loc := keywordPatterns[keyword].FindStringIndex(header)
	if loc == nil {
		return nil
	}
	rest := header[loc[1]:]
	end := len(rest)
	for _, kw := range sectionKeywords {
		if kw == keyword {
			continue
		}
		if m := keywordPatterns[kw].FindStringIndex(rest); m != nil && m[0] < end {
			end = m[0]
		}
	}
	text := strings.TrimRight(strings.TrimSpace(rest[:end]), ",")
	if text == "" {
		return nil
	}
	return trimClauses(strings.Split(text, ","))
}
