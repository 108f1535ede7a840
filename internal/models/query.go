package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyQuery is returned when a query has no text.
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrTopKTooLarge is returned when top_k exceeds the configured maximum.
	ErrTopKTooLarge = errors.New("top_k exceeds the configured maximum")
)

// QueryRequest is a text-to-audio similarity query.
type QueryRequest struct {
	Text string `json:"text"`
	TopK int    `json:"top_k"`
}

// Validate ensures the query has text, using defaultLimit when TopK is unset. A
// positive maxLimit rejects larger TopK values; zero leaves TopK unbounded so a
// request for at least N results returns every row.
func (q *QueryRequest) Validate(defaultLimit, maxLimit int) error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return ErrEmptyQuery
	}
	if q.TopK <= 0 {
		q.TopK = defaultLimit
	}
	if maxLimit > 0 && q.TopK > maxLimit {
		return fmt.Errorf("%w: %d > %d", ErrTopKTooLarge, q.TopK, maxLimit)
	}
	return nil
}

// KeywordQuery searches item paths by keyword.
type KeywordQuery struct {
	Text  string `json:"text"`
	Limit int    `json:"limit,omitempty"`
	Fuzzy bool   `json:"fuzzy,omitempty"` // enable fuzzy matching for typo tolerance
}

// Validate ensures the keyword query has text and a bounded limit.
func (q *KeywordQuery) Validate(defaultLimit, maxLimit int) error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return ErrEmptyQuery
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}
