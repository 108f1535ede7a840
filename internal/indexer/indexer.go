// Package indexer discovers audio files, appends their embeddings to the vector store
// and binds each new path to its slot in the metadata store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/soundsift/internal/audio"
	"github.com/hyperjump/soundsift/internal/embedding"
	"github.com/hyperjump/soundsift/internal/keyword"
	"github.com/hyperjump/soundsift/internal/models"
	"github.com/hyperjump/soundsift/internal/storage"
	"github.com/hyperjump/soundsift/internal/vector"
	"go.uber.org/zap"
)

// ErrNotDirectory is returned when the folder to index is missing or not a directory.
var ErrNotDirectory = errors.New("folder does not exist or is not a directory")

// TextIndex stores the path-text embedding of each item.
type TextIndex interface {
	Put(path string, vec []float32) error
	Delete(paths ...string) error
}

// ProgressFunc is called after each new item has been processed.
type ProgressFunc func(done, total int, path string)

// Indexer appends new audio files to the vector store. Only one indexing run may
// write at a time.
type Indexer struct {
	store        storage.MetadataStore
	vectors      *vector.FlatStore
	embedder     embedding.Embedder
	decoder      audio.Decoder
	walker       *Walker
	textIndex    TextIndex
	keywordIndex keyword.KeywordIndex
	lock         *writerLock
	progress     ProgressFunc
	usagePaths   []string
	logger       *zap.Logger // optional
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for per-item and per-run events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithWalker replaces the default walker, which accepts every supported audio file.
func WithWalker(w *Walker) IndexerOption {
	return func(idx *Indexer) { idx.walker = w }
}

// WithTextIndex enables the path-text side channel.
func WithTextIndex(t TextIndex) IndexerOption {
	return func(idx *Indexer) { idx.textIndex = t }
}

// WithKeywordIndex enables keyword indexing of item paths.
func WithKeywordIndex(k keyword.KeywordIndex) IndexerOption {
	return func(idx *Indexer) { idx.keywordIndex = k }
}

// WithProgress sets a callback for per-item progress.
func WithProgress(fn ProgressFunc) IndexerOption {
	return func(idx *Indexer) { idx.progress = fn }
}

// WithLockTimeout sets how long to wait for another process's writer lock.
func WithLockTimeout(d time.Duration) IndexerOption {
	return func(idx *Indexer) { idx.lock.timeout = d }
}

// WithUsagePaths sets the files and directories counted in Status disk usage, in
// addition to the vector file.
func WithUsagePaths(paths ...string) IndexerOption {
	return func(idx *Indexer) { idx.usagePaths = paths }
}

// NewIndexer creates an indexer over the given stores.
func NewIndexer(
	store storage.MetadataStore,
	vectors *vector.FlatStore,
	embedder embedding.Embedder,
	decoder audio.Decoder,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		decoder:  decoder,
		walker:   NewWalker(nil, nil, audio.Extensions()),
		lock:     newWriterLock(vectors.Path()+".lock", 2*time.Second),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.walker.logger == nil {
		idx.walker.logger = idx.logger
	}
	return idx
}

// newItem is a discovered path with no metadata yet.
type newItem struct {
	file     DiscoveredFile
	duration float64
	result   int // index into report.Results
}

// IndexFolder indexes every supported audio file under root. Paths already in the
// metadata store are not re-embedded; a changed modification time only refreshes their
// metadata and path-text entries. Per-item failures are reported, not returned.
func (idx *Indexer) IndexFolder(ctx context.Context, root string) (*models.IndexReport, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	release, err := idx.lock.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	report := &models.IndexReport{
		RunID:     uuid.New().String(),
		Root:      abs,
		StartedAt: time.Now(),
	}
	defer func() { report.Elapsed = time.Since(report.StartedAt) }()

	if err := storage.EnsureModel(ctx, idx.store, idx.embedder.ModelVersion(), idx.embedder.Dimensions()); err != nil {
		return nil, err
	}
	if _, err := idx.recoverLocked(ctx); err != nil {
		return nil, fmt.Errorf("recovery failed: %w", err)
	}

	files, err := idx.walker.Walk(ctx, abs)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", abs, err)
	}
	report.Discovered = len(files)

	var pending []*newItem
	var touched []string
	for _, f := range files {
		item, err := idx.store.LookupByPath(ctx, f.Path)
		if err != nil {
			report.Results = append(report.Results, idx.failed(f.Path, fmt.Errorf("metadata lookup: %w", err)))
			continue
		}
		switch {
		case item == nil:
			report.Results = append(report.Results, models.ItemResult{Path: f.Path, Slot: models.NoSlot})
			pending = append(pending, &newItem{file: f, result: len(report.Results) - 1})
		case !item.HasSlot():
			report.Results = append(report.Results, idx.failed(f.Path, errors.New("item is recorded without a vector slot")))
		case item.LastModified == f.ModTime:
			report.Results = append(report.Results, models.ItemResult{Path: f.Path, Status: models.ItemUnchanged, Slot: item.Slot})
		default:
			report.Results = append(report.Results, idx.refresh(ctx, f, item))
			touched = append(touched, f.Path)
		}
	}

	rows, err := idx.appendNew(ctx, pending, report)
	if err != nil {
		return nil, err
	}
	report.RowsBefore, report.RowsAfter = rows.RowsBefore, rows.RowsAfter

	touched = append(touched, report.AppendedPaths()...)
	idx.updateSideChannels(ctx, touched)

	if idx.logger != nil {
		idx.logger.Info("indexed folder",
			zap.String("run_id", report.RunID),
			zap.String("root", abs),
			zap.Int("discovered", report.Discovered),
			zap.Int("appended", report.Count(models.ItemAppended)),
			zap.Int("refreshed", report.Count(models.ItemRefreshed)),
			zap.Int("unchanged", report.Count(models.ItemUnchanged)),
			zap.Int("failed", report.Count(models.ItemFailed)),
			zap.Int("rows", report.RowsAfter),
		)
	}
	return report, nil
}

// appendNew decodes and embeds pending items, then appends the ones that succeeded.
// Items that cannot be decoded or embedded never reach the vector store, so a file
// that keeps failing does not grow it on every run. Each appended item's metadata is
// committed right after its row is written.
func (idx *Indexer) appendNew(ctx context.Context, pending []*newItem, report *models.IndexReport) (*vector.AppendResult, error) {
	ready := make([]*newItem, 0, len(pending))
	vecs := make([][]float32, 0, len(pending))
	for i, it := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := idx.embedItem(ctx, it)
		if idx.progress != nil {
			idx.progress(i+1, len(pending), it.file.Path)
		}
		if err != nil {
			report.Results[it.result] = idx.failed(it.file.Path, err)
			continue
		}
		ready = append(ready, it)
		vecs = append(vecs, vec)
	}

	produce := func(_ context.Context, i int) ([]float32, error) {
		vec := vecs[i]
		vecs[i] = nil
		return vec, nil
	}
	commit := func(ctx context.Context, i int, slot int64) error {
		it := ready[i]
		ok, err := idx.store.InsertWithSlot(ctx, it.file.Path, slot, it.file.ModTime, it.duration)
		if err != nil {
			return fmt.Errorf("metadata insert: %w", err)
		}
		if !ok {
			return fmt.Errorf("metadata insert: path or slot %d already recorded", slot)
		}
		return nil
	}

	result, err := idx.vectors.Append(ctx, len(ready), produce, commit)
	if err != nil {
		// Rows committed during the failed run never reached the live file.
		if rows, rerr := idx.vectors.Rows(); rerr == nil {
			if dangling, derr := idx.store.DeleteItemsFromSlot(context.WithoutCancel(ctx), int64(rows)); derr == nil {
				idx.removeSideChannels(context.WithoutCancel(ctx), dangling)
			} else if idx.logger != nil {
				idx.logger.Error("failed to remove metadata of aborted append", zap.Error(derr))
			}
		}
		return nil, fmt.Errorf("failed to append vectors: %w", err)
	}

	for _, o := range result.Outcomes {
		it := ready[o.Index]
		res := &report.Results[it.result]
		if o.Err != nil {
			*res = idx.failed(it.file.Path, o.Err)
			continue
		}
		res.Status = models.ItemAppended
		res.Slot = o.Slot
		if idx.logger != nil {
			idx.logger.Debug("appended item", zap.String("path", it.file.Path), zap.Int64("slot", o.Slot))
		}
	}
	return result, nil
}

// embedItem decodes and embeds one new item and checks the vector can be stored.
func (idx *Indexer) embedItem(ctx context.Context, it *newItem) ([]float32, error) {
	clip, err := idx.decoder.Decode(ctx, it.file.Path)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	it.duration = clip.Duration
	vec, err := idx.embedder.EmbedAudio(ctx, clip.Samples, clip.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vec) != idx.vectors.Dimensions() {
		return nil, fmt.Errorf("embed: %w: got %d, expected %d", vector.ErrDimensionMismatch, len(vec), idx.vectors.Dimensions())
	}
	if vector.L2Norm(vec) == 0 {
		return nil, errors.New("embed: embedding has zero norm")
	}
	return vec, nil
}

// refresh updates the metadata of a path whose file changed since it was indexed.
func (idx *Indexer) refresh(ctx context.Context, f DiscoveredFile, item *models.Item) models.ItemResult {
	duration := item.Duration
	if clip, err := idx.decoder.Decode(ctx, f.Path); err == nil {
		duration = clip.Duration
	} else if idx.logger != nil {
		idx.logger.Warn("failed to decode changed file, keeping old duration",
			zap.String("path", f.Path), zap.Error(err))
	}
	if _, err := idx.store.UpsertByPath(ctx, f.Path, f.ModTime, duration); err != nil {
		return idx.failed(f.Path, fmt.Errorf("metadata update: %w", err))
	}
	if idx.logger != nil {
		idx.logger.Debug("refreshed item", zap.String("path", f.Path), zap.Int64("slot", item.Slot))
	}
	return models.ItemResult{Path: f.Path, Status: models.ItemRefreshed, Slot: item.Slot}
}

func (idx *Indexer) failed(path string, err error) models.ItemResult {
	if idx.logger != nil {
		idx.logger.Warn("failed to index item", zap.String("path", path), zap.Error(err))
	}
	return models.ItemResult{Path: path, Status: models.ItemFailed, Slot: models.NoSlot, Reason: err.Error()}
}

// updateSideChannels writes the path-text embedding and keyword entry of each path.
// Failures are logged and do not affect the report.
func (idx *Indexer) updateSideChannels(ctx context.Context, paths []string) {
	for _, p := range paths {
		if idx.textIndex != nil {
			vec, err := idx.embedder.EmbedText(ctx, embedding.PathToText(p))
			if err == nil {
				err = idx.textIndex.Put(p, vec)
			}
			if err != nil && idx.logger != nil {
				idx.logger.Warn("failed to store path text embedding", zap.String("path", p), zap.Error(err))
			}
		}
		if idx.keywordIndex != nil {
			if err := idx.keywordIndex.Index(ctx, p); err != nil && idx.logger != nil {
				idx.logger.Warn("failed to index path keywords", zap.String("path", p), zap.Error(err))
			}
		}
	}
}

func (idx *Indexer) removeSideChannels(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	if idx.textIndex != nil {
		if err := idx.textIndex.Delete(paths...); err != nil && idx.logger != nil {
			idx.logger.Warn("failed to delete path text embeddings", zap.Error(err))
		}
	}
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.Delete(ctx, paths...); err != nil && idx.logger != nil {
			idx.logger.Warn("failed to delete keyword entries", zap.Error(err))
		}
	}
}

// Recover resolves a leftover temporary vector file and removes metadata that points
// past the end of the live file.
func (idx *Indexer) Recover(ctx context.Context) (*models.RecoveryReport, error) {
	release, err := idx.lock.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return idx.recoverLocked(ctx)
}

func (idx *Indexer) recoverLocked(ctx context.Context) (*models.RecoveryReport, error) {
	maxSlot, err := idx.store.MaxSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read max slot: %w", err)
	}
	action, rows, err := idx.vectors.Recover(int(maxSlot + 1))
	if err != nil {
		return nil, err
	}
	dangling, err := idx.store.DeleteItemsFromSlot(ctx, int64(rows))
	if err != nil {
		return nil, fmt.Errorf("failed to delete dangling items: %w", err)
	}
	idx.removeSideChannels(ctx, dangling)
	if len(dangling) > 0 && idx.logger != nil {
		idx.logger.Warn("removed items without vector rows",
			zap.Int("count", len(dangling)), zap.Int("rows", rows))
	}
	return &models.RecoveryReport{TempAction: action, Rows: rows, DanglingPaths: dangling}, nil
}

// Status reports row and item counts and how far they disagree.
func (idx *Indexer) Status(ctx context.Context) (*models.StoreStatus, error) {
	rows, err := idx.vectors.Rows()
	if err != nil {
		return nil, err
	}
	items, err := idx.store.CountItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}
	slotted, err := idx.store.CountSlotted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count slotted items: %w", err)
	}
	maxSlot, err := idx.store.MaxSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read max slot: %w", err)
	}
	dangling, err := idx.store.CountItemsFromSlot(ctx, int64(rows))
	if err != nil {
		return nil, fmt.Errorf("failed to count dangling items: %w", err)
	}
	usage, err := storage.DiskUsageBytes(append([]string{idx.vectors.Path()}, idx.usagePaths...)...)
	if err != nil && idx.logger != nil {
		idx.logger.Warn("failed to compute disk usage", zap.Error(err))
	}
	return &models.StoreStatus{
		Rows:           rows,
		Items:          items,
		MaxSlot:        maxSlot,
		OrphanRows:     int64(rows) - (slotted - dangling),
		DanglingItems:  dangling,
		PendingTemp:    idx.vectors.HasPendingTemp(),
		ModelVersion:   idx.embedder.ModelVersion(),
		Dimensions:     idx.vectors.Dimensions(),
		Loader:         string(idx.vectors.LoaderType()),
		DiskUsageBytes: usage,
	}, nil
}
