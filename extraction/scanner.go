package extraction

import (
	"fmt"
	"strings"
)

// ScanExtractor walks the function header tracking parentheses, brackets,
// braces and quantifier binders. Clauses are split only on commas at the top
// level of a section, and comments are dropped. The header ends at the first
// top-level opening brace or semicolon.
type ScanExtractor struct{}

// NewScanExtractor creates a ScanExtractor.
func NewScanExtractor() *ScanExtractor {
	return &ScanExtractor{}
}

// Name returns "scanner".
func (e *ScanExtractor) Name() string {
	return EngineScanner
}

// Extract implements ClauseExtractor. It returns ErrUnbalanced when the header
// closes a delimiter it never opened or ends with delimiters still open.
func (e *ScanExtractor) Extract(content, function string) (Specs, error) {
	loc := declPattern(function).FindStringIndex(content)
	if loc == nil {
		return Specs{}, nil
	}
	specs := Specs{Line: lineOf(content, loc[0])}

	// Start at the opening parenthesis of the parameter list
	sections, err := scanSections(content[loc[1]-1:])
	if err != nil {
		return Specs{}, fmt.Errorf("%w: fn %s at line %d", err, function, specs.Line)
	}
	specs.Requires = trimClauses(sections["requires"])
	specs.Ensures = trimClauses(sections["ensures"])
	specs.Decreases = trimClauses(sections["decreases"])
	return specs, nil
}

var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

func isSectionKeyword(word string) bool {
	for _, kw := range sectionKeywords {
		if word == kw {
			return true
		}
	}
	return false
}

func isBinderKeyword(word string) bool {
	return word == "forall" || word == "exists" || word == "choose"
}

func isIdentByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// scanSections splits a header into raw clauses keyed by section keyword.
// Text before the first section keyword is discarded.
func scanSections(src string) (map[string][]string, error) {
	sections := make(map[string][]string)
	var (
		stack         []byte
		clause        strings.Builder
		section       string
		pendingBinder bool
	)
	flush := func() {
		if section != "" {
			sections[section] = append(sections[section], clause.String())
		}
		clause.Reset()
	}

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			clause.WriteByte(' ')
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, ErrUnbalanced
			}
			i += end + 4
			clause.WriteByte(' ')
			continue
		case c == '"':
			j := i + 1
			for j < len(src) && src[j] != '"' {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(src) {
				return nil, ErrUnbalanced
			}
			clause.WriteString(src[i : j+1])
			i = j + 1
			continue
		case c == '\'':
			// Char literals; a lone quote is a lifetime
			n := 1
			switch {
			case i+2 < len(src) && src[i+2] == '\'':
				n = 3
			case i+3 < len(src) && src[i+1] == '\\' && src[i+3] == '\'':
				n = 4
			}
			clause.WriteString(src[i : i+n])
			i += n
			continue
		case isIdentByte(c):
			j := i
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			word := src[i:j]
			i = j
			if len(stack) == 0 && isSectionKeyword(word) {
				flush()
				section = word
				continue
			}
			pendingBinder = isBinderKeyword(word)
			clause.WriteString(word)
			continue
		}

		switch c {
		case '(', '[':
			stack = append(stack, c)
		case '{':
			if len(stack) == 0 {
				flush()
				return sections, nil
			}
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != closers[c] {
				return nil, ErrUnbalanced
			}
			stack = stack[:len(stack)-1]
		case '|':
			switch {
			case pendingBinder:
				stack = append(stack, '|')
			case len(stack) > 0 && stack[len(stack)-1] == '|':
				stack = stack[:len(stack)-1]
			}
		case ',':
			if len(stack) == 0 {
				flush()
				i++
				continue
			}
		case ';':
			if len(stack) == 0 {
				flush()
				return sections, nil
			}
		}
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			pendingBinder = false
		}
		clause.WriteByte(c)
		i++
	}

	if len(stack) > 0 {
		return nil, ErrUnbalanced
	}
	flush()
	return sections, nil
}
