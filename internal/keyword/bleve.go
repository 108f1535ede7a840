package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/soundsift/internal/embedding"
)

const (
	fieldName = "name"
	fieldDirs = "dirs"
)

// BleveIndex implements KeywordIndex using Bleve. Each item path is indexed as two
// text fields: the file name caption and the folder caption, both produced by
// embedding.PathToText.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If the path already exists, the existing index is opened and reused.
// If you change the index mapping in code, remove the index directory to rebuild it.
func NewBleveIndex(path string) (*BleveIndex, error) {
	return OpenBleveIndex(path, 0)
}

// OpenBleveIndex is NewBleveIndex with a bound on how long to wait for another
// process to release an existing index. Zero waits indefinitely.
func OpenBleveIndex(path string, lockTimeout time.Duration) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "kicks" does not match "kick"
	// by accident and numbered takes stay distinct.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldName, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldDirs, textFieldMapping)
	im.AddDocumentMapping("item", docMapping)
	im.DefaultType = "item"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		runtimeConfig := map[string]interface{}{}
		if lockTimeout > 0 {
			runtimeConfig["bolt_timeout"] = lockTimeout.String()
		}
		index, openErr := bleve.OpenUsing(path, runtimeConfig)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create Bleve index directory: %w", err)
		}
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes an item path. Re-indexing the same path replaces the document.
func (b *BleveIndex) Index(ctx context.Context, path string) error {
	doc := map[string]interface{}{
		fieldName: embedding.PathToText(filepath.Base(path)),
		fieldDirs: embedding.PathToText(filepath.Dir(path)),
	}
	return b.index.Index(path, doc)
}

// Search runs a match (or fuzzy) query against file names and folders and merges the
// two with additive scoring: score = name*NameBoost + dirs, scaled down for documents
// that match only some of the query terms.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	nameBoost := 2.0
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		if opts.NameBoost > 0 {
			nameBoost = opts.NameBoost
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}
	if limit <= 0 {
		return nil, nil
	}
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	nameScores, err := b.fieldScores(b.buildQuery(query, fuzzyEnabled, fuzziness, fieldName), reqSize)
	if err != nil {
		return nil, fmt.Errorf("Bleve name search failed: %w", err)
	}
	dirScores, err := b.fieldScores(b.buildQuery(query, fuzzyEnabled, fuzziness, fieldDirs), reqSize)
	if err != nil {
		return nil, fmt.Errorf("Bleve folder search failed: %w", err)
	}

	terms := tokenizeQuery(query)
	coverage := map[string]int{}
	if len(terms) > 1 {
		coverage = b.termCoverage(terms, reqSize, fuzzyEnabled, fuzziness)
	}

	scores := make(map[string]float64, len(nameScores)+len(dirScores))
	for id, s := range nameScores {
		scores[id] += s * nameBoost
	}
	for id, s := range dirScores {
		scores[id] += s
	}
	if len(terms) > 1 {
		for id := range scores {
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			scores[id] *= c * c
		}
	}

	out := make([]*KeywordResult, 0, len(scores))
	for id, s := range scores {
		out = append(out, &KeywordResult{Path: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *BleveIndex) fieldScores(q blevequery.Query, size int) (map[string]float64, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	res, err := b.index.Search(req)
	if err != nil {
		return nil, err
	}
	scores := make(map[string]float64, len(res.Hits))
	for _, hit := range res.Hits {
		scores[hit.ID] = hit.Score
	}
	return scores, nil
}

var termSeparators = strings.NewReplacer("_", " ", "-", " ", "/", " ")

// tokenizeQuery splits query into lowercase terms, treating '_', '-' and '/' like spaces
// as captions do.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(termSeparators.Replace(query)))
}

// buildQuery creates a match query, or a disjunction of fuzzy queries (one per term)
// when fuzzy matching is enabled, restricted to field.
func (b *BleveIndex) buildQuery(queryStr string, fuzzyEnabled bool, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if !fuzzyEnabled || len(terms) == 0 {
		mq := bleve.NewMatchQuery(strings.Join(terms, " "))
		mq.SetField(field)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// termCoverage counts how many query terms each path matches in either field.
func (b *BleveIndex) termCoverage(terms []string, reqSize int, fuzzyEnabled bool, fuzziness int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		q := bleve.NewDisjunctionQuery(
			b.buildQuery(term, fuzzyEnabled, fuzziness, fieldName),
			b.buildQuery(term, fuzzyEnabled, fuzziness, fieldDirs),
		)
		req := bleve.NewSearchRequest(q)
		req.Size = reqSize
		results, err := b.index.Search(req)
		if err != nil {
			continue
		}
		for _, hit := range results.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}

// Delete removes item paths from the index.
func (b *BleveIndex) Delete(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, p := range paths {
		batch.Delete(p)
	}
	return b.index.Batch(batch)
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of indexed paths.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
