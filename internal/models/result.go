package models

// QueryResult is one ranked vector row. Path is nil when the slot has no
// item in the metadata store (an orphaned row).
type QueryResult struct {
	Rank       int     `json:"rank"`
	Slot       int     `json:"slot"`
	Score      float32 `json:"score"`
	AudioScore float32 `json:"audio_score"`
	TextScore  float32 `json:"text_score"`
	Path       *string `json:"path"`
}

// PathOrEmpty returns the resolved path, or "" for an orphaned row.
func (r *QueryResult) PathOrEmpty() string {
	if r.Path == nil {
		return ""
	}
	return *r.Path
}

// QueryResponse is the response for a text query.
type QueryResponse struct {
	Results   []*QueryResult `json:"results"`
	Total     int            `json:"total"`
	Rows      int            `json:"rows"`
	QueryTime int64          `json:"query_time_ms"`
	Query     string         `json:"query"`
}

// KeywordResult is a single keyword hit on an item path.
type KeywordResult struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// KeywordResponse is the response for a keyword path query.
type KeywordResponse struct {
	Results   []*KeywordResult `json:"results"`
	QueryTime int64            `json:"query_time_ms"`
	Query     string           `json:"query"`
}
