package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/soundsift/internal/audio"
	"github.com/hyperjump/soundsift/internal/config"
	"github.com/hyperjump/soundsift/internal/embedding"
	"github.com/hyperjump/soundsift/internal/indexer"
	"github.com/hyperjump/soundsift/internal/keyword"
	"github.com/hyperjump/soundsift/internal/search"
	"github.com/hyperjump/soundsift/internal/storage"
	"github.com/hyperjump/soundsift/internal/textindex"
	"github.com/hyperjump/soundsift/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Storage      *storage.SQLiteStorage
	Vectors      *vector.FlatStore
	Embedder     embedding.Embedder
	TextIndex    *textindex.BoltIndex // nil when unavailable
	KeywordIndex *keyword.BleveIndex  // nil when unavailable
	Engine       *search.Engine
	Indexer      *indexer.Indexer
}

// componentOptions tunes initializeComponents per command.
type componentOptions struct {
	readOnly bool // open side channels read-only (query commands)
	progress indexer.ProgressFunc
}

// Close releases every open resource.
func (c *Components) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.TextIndex != nil {
		_ = c.TextIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Embedder {
	onnxEmbedder, err := embedding.NewONNXEmbedder(embedding.ONNXConfig{
		TextModelPath:  cfg.Embedding.TextModelPath,
		AudioModelPath: cfg.Embedding.AudioModelPath,
		ModelVersion:   cfg.Embedding.ModelVersion,
		Dimensions:     cfg.Embedding.Dimensions,
		MaxTokens:      cfg.Embedding.MaxTokens,
		AudioSamples:   cfg.Audio.MaxSamples(),
		SampleRate:     cfg.Audio.SampleRate,
		CacheSize:      cfg.Embedding.CacheSize,
	})
	if err == nil {
		return onnxEmbedder
	}
	logger.Warn("ONNX embedder unavailable, using mock embeddings", zap.Error(err))
	return embedding.NewCachedEmbedder(embedding.NewMockEmbedder(cfg.Embedding.Dimensions, ""), cfg.Embedding.CacheSize)
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts componentOptions) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabaseDriver, cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	c.Embedder = newEmbedder(cfg, logger)
	checkModel := storage.EnsureModel
	if opts.readOnly {
		checkModel = storage.CheckModel
	}
	if err := checkModel(ctx, store, c.Embedder.ModelVersion(), c.Embedder.Dimensions()); err != nil {
		return nil, err
	}

	loader, err := vector.NewLoader(cfg.Search.Loader)
	if err != nil {
		return nil, err
	}
	c.Vectors, err = vector.NewFlatStore(cfg.Storage.VectorPath, c.Embedder.Dimensions(),
		vector.WithLoader(loader), vector.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	// Side channels are optional: another process (usually the server) may hold them.
	textIdx, err := textindex.NewBoltIndex(cfg.Storage.TextIndexPath, c.Embedder.ModelVersion(), c.Embedder.Dimensions(),
		textindex.Options{ReadOnly: opts.readOnly, Timeout: cfg.Index.LockTimeout})
	if err != nil {
		if !textindex.IsLocked(err) && !opts.readOnly {
			return nil, err
		}
		logger.Warn("text index unavailable, continuing without it", zap.String("path", cfg.Storage.TextIndexPath), zap.Error(err))
	} else {
		c.TextIndex = textIdx
	}
	kwIdx, err := keyword.OpenBleveIndex(cfg.Storage.KeywordIndexPath, cfg.Index.LockTimeout)
	if err != nil {
		logger.Warn("keyword index unavailable, continuing without it", zap.String("path", cfg.Storage.KeywordIndexPath), zap.Error(err))
	} else {
		c.KeywordIndex = kwIdx
	}

	engineOpts := []search.EngineOption{search.WithLogger(logger)}
	idxOpts := []indexer.IndexerOption{
		indexer.WithLogger(logger),
		indexer.WithWalker(indexer.NewWalker(cfg.Index.Includes, cfg.Index.Excludes, cfg.Audio.Extensions)),
		indexer.WithLockTimeout(cfg.Index.LockTimeout),
	}
	usage := append(storage.DatabaseFiles(cfg.Storage.DatabasePath), cfg.Storage.TextIndexPath, cfg.Storage.KeywordIndexPath)
	idxOpts = append(idxOpts, indexer.WithUsagePaths(usage...))
	if c.TextIndex != nil {
		engineOpts = append(engineOpts, search.WithTextVectors(c.TextIndex))
		idxOpts = append(idxOpts, indexer.WithTextIndex(c.TextIndex))
	}
	if c.KeywordIndex != nil {
		engineOpts = append(engineOpts, search.WithKeywordIndex(c.KeywordIndex))
		idxOpts = append(idxOpts, indexer.WithKeywordIndex(c.KeywordIndex))
	}
	if opts.progress != nil {
		idxOpts = append(idxOpts, indexer.WithProgress(opts.progress))
	}

	c.Engine = search.NewEngine(store, c.Vectors, c.Embedder, &cfg.Search, engineOpts...)
	c.Indexer = indexer.NewIndexer(store, c.Vectors, c.Embedder,
		audio.NewFileDecoder(cfg.Audio.SampleRate, cfg.Audio.MaxSeconds), idxOpts...)
	ok = true
	return c, nil
}
