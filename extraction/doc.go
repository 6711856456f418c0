// Package extraction recovers requires, ensures and decreases clauses of a
// lemma from its source file.
//
// Two ClauseExtractor implementations exist. RegexExtractor locates the
// function header with a pattern and splits clause sections on commas.
// ScanExtractor walks the header tracking delimiter nesting, so commas inside
// calls, tuples or quantifier binders stay within their clause. The engine is
// chosen once with NewClauseExtractor; "auto" prefers the scanner and falls
// back to the regex extractor for headers the scanner rejects.
//
// SourceReader reads files relative to a repository root through a bounded
// cache and refuses paths that escape the root. SpecFiller combines a reader
// and an extractor to complete lemma records in place.
package extraction
