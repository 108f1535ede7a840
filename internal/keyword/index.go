// Package keyword provides keyword (BM25) search over item paths.
package keyword

import "context"

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// NameBoost multiplies the score contribution from matches in the file name.
	// Values > 1 make file name matches rank above folder matches. Use 1.0 for no boost.
	NameBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// KeywordIndex defines keyword search operations over item paths.
type KeywordIndex interface {
	Index(ctx context.Context, path string) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Delete(ctx context.Context, paths ...string) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	Path  string
	Score float64
}
