package normalize

import (
	"regexp"
	"strings"
)

// MaxVariations bounds the output of GenerateVariations.
const MaxVariations = 2

var (
	ifThen      = regexp.MustCompile(`(?i)^if\s+(.+?)\s+then\s+(.+)$`)
	trailingIf  = regexp.MustCompile(`(?i)^(.+?)\s+if\s+(.+)$`)
	implication = regexp.MustCompile(`^(.+?)\s*` + regexp.QuoteMeta(Implication) + `\s*(.+)$`)
)

// SplitImplication splits text into premise and conclusion when it has the shape
// "if A then B", "B if A" or "A ==> B".
func SplitImplication(text string) (premise, conclusion string, ok bool) {
	text = CollapseWhitespace(text)
	if m := ifThen.FindStringSubmatch(text); m != nil {
		return m[1], m[2], true
	}
	if m := implication.FindStringSubmatch(text); m != nil && !strings.HasSuffix(m[1], "<") {
		return m[1], m[2], true
	}
	if m := trailingIf.FindStringSubmatch(text); m != nil {
		return m[2], m[1], true
	}
	return "", "", false
}

// GenerateVariations returns the forward phrasing "if A then B" followed by
// the backward phrasing "B if A" when text is an implication, or text alone
// otherwise. Both phrasings of the same implication yield the same sequence.
// The result never holds more than MaxVariations distinct strings.
func GenerateVariations(text string) []string {
	text = CollapseWhitespace(text)
	premise, conclusion, ok := SplitImplication(text)
	if !ok {
		return []string{text}
	}
	forward := "if " + premise + " then " + conclusion
	backward := conclusion + " if " + premise
	if forward == backward {
		return []string{forward}
	}
	return []string{forward, backward}
}
