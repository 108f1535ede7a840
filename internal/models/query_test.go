package models

import (
	"errors"
	"testing"
)

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *QueryRequest
		wantErr error
		wantK   int
	}{
		{"empty text", &QueryRequest{Text: "  "}, ErrEmptyQuery, 0},
		{"default top_k", &QueryRequest{Text: "snare"}, nil, 10},
		{"keeps top_k", &QueryRequest{Text: "snare", TopK: 3}, nil, 3},
		{"at the maximum", &QueryRequest{Text: "snare", TopK: 100}, nil, 100},
		{"over the maximum", &QueryRequest{Text: "snare", TopK: 500}, ErrTopKTooLarge, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(10, 100)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && tt.query.TopK != tt.wantK {
				t.Errorf("TopK = %d, want %d", tt.query.TopK, tt.wantK)
			}
		})
	}
}

func TestQueryRequest_ValidateUnbounded(t *testing.T) {
	q := &QueryRequest{Text: "snare", TopK: 500}
	if err := q.Validate(10, 0); err != nil {
		t.Fatal(err)
	}
	if q.TopK != 500 {
		t.Errorf("TopK = %d, want 500 with no maximum", q.TopK)
	}
}

func TestKeywordQuery_Validate(t *testing.T) {
	q := &KeywordQuery{Text: " kick "}
	if err := q.Validate(10, 50); err != nil {
		t.Fatal(err)
	}
	if q.Text != "kick" || q.Limit != 10 {
		t.Errorf("got %+v", q)
	}
	if err := (&KeywordQuery{}).Validate(10, 50); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("want ErrEmptyQuery, got %v", err)
	}
}

func TestIndexReport_Counts(t *testing.T) {
	r := &IndexReport{Results: []ItemResult{
		{Path: "/a.wav", Status: ItemAppended, Slot: 0},
		{Path: "/b.wav", Status: ItemFailed, Slot: 1, Reason: "decode"},
		{Path: "/c.wav", Status: ItemAppended, Slot: 2},
		{Path: "/d.wav", Status: ItemUnchanged, Slot: 0},
	}}
	if r.Count(ItemAppended) != 2 || r.Count(ItemFailed) != 1 {
		t.Errorf("counts: appended=%d failed=%d", r.Count(ItemAppended), r.Count(ItemFailed))
	}
	paths := r.AppendedPaths()
	if len(paths) != 2 || paths[0] != "/a.wav" || paths[1] != "/c.wav" {
		t.Errorf("AppendedPaths = %v", paths)
	}
}
