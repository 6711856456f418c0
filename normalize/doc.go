// Package normalize rewrites raw lemma queries into canonical query variants.
//
// The pipeline is:
//
//	raw query -> NormalizeOperators -> NormalizeVariables -> GenerateVariations
//
// NormalizeOperators maps word forms and Unicode symbols to ASCII operators
// ("times" -> "*", "leq" -> "<=", "implies" -> "==>"). NormalizeVariables renames
// short identifiers used as mathematical variables to var1, var2, ... in order
// of first occurrence. GenerateVariations emits both directions of an
// implication ("if A then B" and "B if A").
//
// Every function is pure and safe for concurrent use.
package normalize
