package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// VariablePrefix is the stem of canonical variable names.
const VariablePrefix = "var"

var (
	// identifier runs; digits and primes are part of the run so "2x" and "x'" stay whole
	identRun = regexp.MustCompile(`[A-Za-z0-9_']+`)
	// short math variable: one or two letters, optional digits, optional primes
	shortVariable = regexp.MustCompile(`^[A-Za-z]{1,2}[0-9]*'*$`)
)

// keywords are never treated as variables even when they sit next to an operator.
var keywords = map[string]bool{
	"if": true, "then": true, "else": true, "and": true, "or": true, "not": true,
	"in": true, "is": true, "of": true, "to": true, "by": true, "at": true,
	"as": true, "on": true, "be": true, "fn": true, "let": true, "mod": true,
	"div": true, "mul": true, "le": true, "lt": true, "ge": true, "gt": true,
	"eq": true, "ne": true, "pow": true, "abs": true, "min": true, "max": true,
	ForAll: true, Exists: true,
}

const operatorChars = "*+-/<>=%!^&|"

// NormalizeVariables renames identifiers used as mathematical variables to
// var1, var2, ... in order of first occurrence. A token is a variable when it
// is one or two letters (optionally followed by digits or primes), is not a
// keyword, and at least one of its occurrences is adjacent to an operator
// symbol. Every occurrence of a variable is renamed, so
// "if a*b<=c then a<=c/b" and "if x*y<=z then x<=z/y" normalize identically.
// Canonical names are never themselves candidates, so the function is idempotent.
func NormalizeVariables(text string) string {
	spans := identRun.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return text
	}

	isVar := make(map[string]bool)
	for _, span := range spans {
		tok := text[span[0]:span[1]]
		if !candidate(tok) {
			continue
		}
		if nextToOperator(text, span[0], span[1]) {
			isVar[tok] = true
		}
	}
	if len(isVar) == 0 {
		return text
	}

	renamed := make(map[string]string, len(isVar))
	var sb strings.Builder
	last := 0
	for _, span := range spans {
		tok := text[span[0]:span[1]]
		if !isVar[tok] {
			continue
		}
		name, ok := renamed[tok]
		if !ok {
			name = VariablePrefix + strconv.Itoa(len(renamed)+1)
			renamed[tok] = name
		}
		sb.WriteString(text[last:span[0]])
		sb.WriteString(name)
		last = span[1]
	}
	sb.WriteString(text[last:])
	return sb.String()
}

func candidate(tok string) bool {
	return shortVariable.MatchString(tok) && !keywords[strings.ToLower(tok)]
}

// nextToOperator reports whether the nearest non-space character on either
// side of text[start:end] is an operator symbol.
func nextToOperator(text string, start, end int) bool {
	for i := start - 1; i >= 0; i-- {
		if text[i] == ' ' || text[i] == '\t' {
			continue
		}
		if strings.IndexByte(operatorChars, text[i]) >= 0 {
			return true
		}
		break
	}
	for i := end; i < len(text); i++ {
		if text[i] == ' ' || text[i] == '\t' {
			continue
		}
		return strings.IndexByte(operatorChars, text[i]) >= 0
	}
	return false
}
