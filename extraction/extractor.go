package extraction

import (
	"fmt"
	"regexp"
	"strings"
)

// Specs holds the clauses found for one function.
type Specs struct {
	Requires  []string
	Ensures   []string
	Decreases []string
	Line      int // 1-based line of the declaration, 0 when not found
}

// Found reports whether the function declaration was located.
func (s Specs) Found() bool {
	return s.Line > 0
}

// ClauseExtractor finds the clauses of a named function in source text.
// A function that does not appear in content yields zero Specs and no error.
type ClauseExtractor interface {
	Name() string
	Extract(content, function string) (Specs, error)
}

// Engine names accepted by NewClauseExtractor.
const (
	EngineAuto    = "auto"
	EngineScanner = "scanner"
	EngineRegex   = "regex"
)

// NewClauseExtractor returns the extractor for engine.
func NewClauseExtractor(engine string) (ClauseExtractor, error) {
	switch engine {
	case EngineAuto, "":
		return &fallbackExtractor{primary: NewScanExtractor(), secondary: NewRegexExtractor()}, nil
	case EngineScanner:
		return NewScanExtractor(), nil
	case EngineRegex:
		return NewRegexExtractor(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
}

// fallbackExtractor uses secondary whenever primary returns an error.
type fallbackExtractor struct {
	primary   ClauseExtractor
	secondary ClauseExtractor
}

func (f *fallbackExtractor) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *fallbackExtractor) Extract(content, function string) (Specs, error) {
	specs, err := f.primary.Extract(content, function)
	if err == nil {
		return specs, nil
	}
	return f.secondary.Extract(content, function)
}

// declPattern matches the start of a function declaration, optionally
// preceded by pub and proof.
func declPattern(function string) *regexp.Regexp {
	return regexp.MustCompile(`(?:pub\s+)?(?:proof\s+)?fn\s+` + regexp.QuoteMeta(function) + `\s*\(`)
}

// lineOf returns the 1-based line number of offset in content.
func lineOf(content string, offset int) int {
	return strings.Count(content[:offset], "\n") + 1
}

// trimClauses collapses whitespace in each clause and drops empty ones.
func trimClauses(parts []string) []string {
	var out []string
	for _, p := range parts {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}
