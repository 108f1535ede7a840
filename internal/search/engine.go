// Package search ranks indexed audio against text queries and searches item paths by keyword.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/soundsift/internal/config"
	"github.com/hyperjump/soundsift/internal/embedding"
	"github.com/hyperjump/soundsift/internal/keyword"
	"github.com/hyperjump/soundsift/internal/models"
	"github.com/hyperjump/soundsift/internal/storage"
	"github.com/hyperjump/soundsift/internal/vector"
	"go.uber.org/zap"
)

// fusePoolFactor is how many audio candidates per requested result are re-scored
// when path-text blending is enabled.
const fusePoolFactor = 5

// TextVectors looks up the path-text embeddings of items.
type TextVectors interface {
	GetMany(paths []string) (map[string][]float32, error)
}

// Engine answers text queries with a full scan of the vector store.
type Engine struct {
	store        storage.MetadataStore
	vectors      vector.Store
	embedder     embedding.Embedder
	textVectors  TextVectors
	keywordIndex keyword.KeywordIndex
	config       *config.SearchConfig
	cache        *snapshotCache // nil unless cache_snapshot is set
	logger       *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithTextVectors enables path-text blending when the configured text weight is positive.
func WithTextVectors(t TextVectors) EngineOption {
	return func(e *Engine) { e.textVectors = t }
}

// WithKeywordIndex enables KeywordSearch.
func WithKeywordIndex(k keyword.KeywordIndex) EngineOption {
	return func(e *Engine) { e.keywordIndex = k }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	store storage.MetadataStore,
	vectors vector.Store,
	embedder embedding.Embedder,
	cfg *config.SearchConfig,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		config:   cfg,
	}
	if cfg.CacheSnapshot {
		e.cache = &snapshotCache{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search validates the request and runs Query.
func (e *Engine) Search(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()
	if err := req.Validate(e.config.DefaultLimit, e.config.MaxLimit); err != nil {
		return nil, err
	}
	results, rows, err := e.query(ctx, req.Text, req.TopK)
	if err != nil {
		return nil, err
	}
	return &models.QueryResponse{
		Results:   results,
		Total:     len(results),
		Rows:      rows,
		QueryTime: time.Since(start).Milliseconds(),
		Query:     req.Text,
	}, nil
}

// Query returns the topK rows most similar to text, best first. An empty store yields
// no results. Rows whose slot has no item get a nil path.
func (e *Engine) Query(ctx context.Context, text string, topK int) ([]*models.QueryResult, error) {
	results, _, err := e.query(ctx, text, topK)
	return results, err
}

func (e *Engine) query(ctx context.Context, text string, topK int) ([]*models.QueryResult, int, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load vector store: %w", err)
	}
	defer snap.Release()

	rows := snap.Rows()
	if rows == 0 || topK <= 0 {
		return []*models.QueryResult{}, rows, nil
	}

	q, err := e.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, rows, fmt.Errorf("failed to embed query: %w", err)
	}

	blend := e.textVectors != nil && e.config.TextWeight > 0
	pool := topK
	if blend {
		pool = topK * fusePoolFactor
	}
	hits, err := vector.Rank(snap, q, pool)
	if err != nil {
		return nil, rows, err
	}

	items := make([]*models.Item, len(hits))
	for i, h := range hits {
		item, err := e.store.LookupBySlot(ctx, int64(h.Slot))
		if err != nil {
			return nil, rows, fmt.Errorf("failed to resolve slot %d: %w", h.Slot, err)
		}
		if item == nil && e.logger != nil {
			e.logger.Debug("slot has no item", zap.Int("slot", h.Slot))
		}
		items[i] = item
	}

	var textScores map[int]float32
	if blend {
		textScores = e.textScores(vector.Normalized(q), hits, items)
	}
	fused := Fuse(hits, textScores, e.config.TextWeight)
	if len(fused) > topK {
		fused = fused[:topK]
	}

	bySlot := make(map[int]*models.Item, len(items))
	for i, h := range hits {
		bySlot[h.Slot] = items[i]
	}
	results := make([]*models.QueryResult, len(fused))
	for i, f := range fused {
		r := &models.QueryResult{
			Rank:       i + 1,
			Slot:       f.Slot,
			Score:      f.Score,
			AudioScore: f.AudioScore,
			TextScore:  f.TextScore,
		}
		if item := bySlot[f.Slot]; item != nil {
			path := item.Path
			r.Path = &path
		}
		results[i] = r
	}
	return results, rows, nil
}

// textScores scores the path-text vector of every resolved hit against the
// normalized query. A lookup failure disables blending for this query.
func (e *Engine) textScores(q []float32, hits []vector.Hit, items []*models.Item) map[int]float32 {
	paths := make([]string, 0, len(items))
	for _, item := range items {
		if item != nil {
			paths = append(paths, item.Path)
		}
	}
	vecs, err := e.textVectors.GetMany(paths)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("failed to read path text embeddings", zap.Error(err))
		}
		return nil
	}
	scores := make(map[int]float32, len(vecs))
	for i, item := range items {
		if item == nil {
			continue
		}
		if v, ok := vecs[item.Path]; ok {
			scores[hits[i].Slot] = vector.Dot(q, v)
		}
	}
	return scores
}

// KeywordSearch ranks item paths by keyword relevance.
func (e *Engine) KeywordSearch(ctx context.Context, q *models.KeywordQuery) (*models.KeywordResponse, error) {
	start := time.Now()
	if e.keywordIndex == nil {
		return nil, fmt.Errorf("keyword index is not available")
	}
	if err := q.Validate(e.config.DefaultLimit, e.config.MaxLimit); err != nil {
		return nil, err
	}
	hits, err := e.keywordIndex.Search(ctx, q.Text, q.Limit, &keyword.SearchOptions{FuzzyEnabled: q.Fuzzy})
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	resp := &models.KeywordResponse{
		Results: make([]*models.KeywordResult, 0, len(hits)),
		Query:   q.Text,
	}
	for _, h := range hits {
		resp.Results = append(resp.Results, &models.KeywordResult{Path: h.Path, Score: h.Score})
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

// Close releases the cached snapshot, if any.
func (e *Engine) Close() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.close()
}

func (e *Engine) snapshot() (*vector.Snapshot, error) {
	if e.cache != nil {
		return e.cache.get(e.vectors)
	}
	return e.vectors.Snapshot()
}
