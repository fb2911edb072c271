package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/fileid"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/storage"
	"github.com/hyperjump/kotaeru/internal/vectorstore"
)

// embedBatchSize bounds how many chunk texts go to the embedder per call.
const embedBatchSize = 32

// Builder constructs a vector store from a document directory. Each build
// produces a fresh store; callers publish it atomically once complete.
type Builder struct {
	embedder embedding.Embedder
	registry storage.Registry // optional; nil disables the document registry
	splitter *Splitter
	metric   vectorstore.Metric
	logger   *zap.Logger
}

// NewBuilder wires a builder. registry may be nil.
func NewBuilder(embedder embedding.Embedder, registry storage.Registry, splitter *Splitter, metric vectorstore.Metric, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if splitter == nil {
		splitter = NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	}
	return &Builder{
		embedder: embedder,
		registry: registry,
		splitter: splitter,
		metric:   metric,
		logger:   logger,
	}
}

// BuildDirectory walks dir, ingests every supported regular file, and
// returns a store holding all their chunks. Files that fail extraction are
// logged and skipped so one bad document does not sink the build.
func (b *Builder) BuildDirectory(ctx context.Context, dir string) (*vectorstore.Store, error) {
	return b.build(ctx, dir, nil)
}

// Rebuild is BuildDirectory with reuse: a file whose size and mtime still
// match its registry record keeps its vectors and chunks from prev instead
// of being re-extracted and re-embedded. prev may be nil.
func (b *Builder) Rebuild(ctx context.Context, dir string, prev *vectorstore.Store) (*vectorstore.Store, error) {
	return b.build(ctx, dir, b.reuseIndex(prev))
}

func (b *Builder) build(ctx context.Context, dir string, reuse map[string]*reuseEntry) (*vectorstore.Store, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	store, err := vectorstore.New(b.embedder.Dimensions(), b.metric)
	if err != nil {
		return nil, err
	}

	// Run ID ties together the log lines of one build.
	logger := b.logger.With(zap.String("run_id", uuid.NewString()[:8]))

	start := time.Now()
	files := 0
	reused := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != absDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !extract.Supported(filepath.Ext(path)) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if entry := reuse[path]; entry != nil && b.unchanged(ctx, path, finfo, len(entry.chunks)) {
			if reuseErr := store.AddVectors(entry.vectors, entry.chunks); reuseErr == nil {
				logger.Debug("file unchanged, chunks reused", zap.String("path", path))
				files++
				reused++
				return nil
			}
		}
		if ingestErr := b.ingestFile(ctx, store, path, finfo); ingestErr != nil {
			logger.Warn("skipping file", zap.String("path", path), zap.Error(ingestErr))
			return nil
		}
		files++
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("index built",
		zap.Int("files", files),
		zap.Int("reused", reused),
		zap.Int("chunks", store.Len()),
		zap.Duration("took", time.Since(start)))
	return store, nil
}

// reuseEntry holds one source file's vectors and chunks from a prior store.
type reuseEntry struct {
	vectors [][]float32
	chunks  []*models.Chunk
}

// reuseIndex groups prev's contents by source path. Returns nil when reuse
// is impossible: no prior store, no registry to check files against, or a
// store built with a different dimension or metric.
func (b *Builder) reuseIndex(prev *vectorstore.Store) map[string]*reuseEntry {
	if prev == nil || b.registry == nil {
		return nil
	}
	if prev.Dim() != b.embedder.Dimensions() || prev.Metric() != b.metric {
		return nil
	}
	idx := make(map[string]*reuseEntry)
	for vec, chunk := range prev.All() {
		source := chunk.Metadata.GetString("source")
		if source == "" {
			continue
		}
		entry := idx[source]
		if entry == nil {
			entry = &reuseEntry{}
			idx[source] = entry
		}
		entry.vectors = append(entry.vectors, vec)
		entry.chunks = append(entry.chunks, chunk)
	}
	return idx
}

// unchanged reports whether the registry record for path still matches the
// file on disk and the chunk count we would reuse.
func (b *Builder) unchanged(ctx context.Context, path string, info os.FileInfo, chunks int) bool {
	doc, err := b.registry.GetDocument(ctx, fileid.DocID(path))
	if err != nil {
		return false
	}
	return doc.SizeBytes == info.Size() &&
		doc.MTimeNano == info.ModTime().UnixNano() &&
		doc.Chunks == chunks
}

// ingestFile extracts, splits, embeds, and appends one file's chunks.
func (b *Builder) ingestFile(ctx context.Context, store *vectorstore.Store, path string, info os.FileInfo) error {
	text, err := extract.Extract(path)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	pieces := b.splitter.Split(text)
	if len(pieces) == 0 {
		b.logger.Debug("file has no text content", zap.String("path", path))
		return nil
	}

	name := filepath.Base(path)
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	chunks := make([]*models.Chunk, len(pieces))
	for i, piece := range pieces {
		var meta models.Metadata
		meta = meta.Set("source", path)
		meta = meta.Set("file_name", name)
		meta = meta.Set("file_type", fileType)
		meta = meta.Set("chunk_index", i)
		meta = meta.Set("total_chunks", len(pieces))
		chunks[i] = &models.Chunk{Content: piece, Metadata: meta}
	}

	for lo := 0; lo < len(pieces); lo += embedBatchSize {
		hi := lo + embedBatchSize
		if hi > len(pieces) {
			hi = len(pieces)
		}
		vecs, err := b.embedder.EmbedBatch(ctx, pieces[lo:hi])
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		if err := store.AddVectors(vecs, chunks[lo:hi]); err != nil {
			return fmt.Errorf("add vectors: %w", err)
		}
	}

	if b.registry != nil {
		doc := &models.Document{
			ID:         fileid.DocID(path),
			Name:       name,
			Path:       path,
			Type:       fileType,
			Chunks:     len(pieces),
			SizeBytes:  info.Size(),
			MTimeNano:  info.ModTime().UnixNano(),
			IngestedAt: time.Now(),
		}
		if err := b.registry.UpsertDocument(ctx, doc); err != nil {
			return fmt.Errorf("record document: %w", err)
		}
	}

	b.logger.Debug("file ingested",
		zap.String("path", path),
		zap.Int("chunks", len(pieces)))
	return nil
}
