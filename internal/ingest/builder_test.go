package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/storage"
	"github.com/hyperjump/kotaeru/internal/vectorstore"
)

// countingEmbedder tracks how many texts reach the embedder.
type countingEmbedder struct {
	embedding.Embedder
	texts int
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.texts += len(texts)
	return c.Embedder.EmbedBatch(ctx, texts)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "alpha document content")
	writeFile(t, dir, "b.txt", "beta document content")
	writeFile(t, dir, "ignored.png", "binary junk")

	embedder := embedding.NewMockEmbedder(64)
	b := NewBuilder(embedder, nil, NewSplitter(100, 10), vectorstore.MetricCosine, nil)

	store, err := b.BuildDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Errorf("store has %d chunks, want 2", store.Len())
	}

	found := map[string]bool{}
	for _, chunk := range store.All() {
		found[chunk.Metadata.GetString("file_name")] = true
		if chunk.Metadata.GetString("file_type") == "" {
			t.Error("chunk missing file_type metadata")
		}
		if _, ok := chunk.Metadata.Get("chunk_index"); !ok {
			t.Error("chunk missing chunk_index metadata")
		}
	}
	if !found["a.md"] || !found["b.txt"] {
		t.Errorf("chunks = %v, want both files represented", found)
	}
	if found["ignored.png"] {
		t.Error("unsupported file was ingested")
	}
}

func TestBuildDirectoryChunkMetadataCounts(t *testing.T) {
	dir := t.TempDir()
	var long strings.Builder
	for i := 0; i < 50; i++ {
		long.WriteString("this sentence pads the document out to multiple chunks. ")
	}
	writeFile(t, dir, "long.txt", long.String())

	embedder := embedding.NewMockEmbedder(32)
	b := NewBuilder(embedder, nil, NewSplitter(200, 20), vectorstore.MetricCosine, nil)

	store, err := b.BuildDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() < 2 {
		t.Fatalf("want multiple chunks, got %d", store.Len())
	}

	i := 0
	for _, chunk := range store.All() {
		if got := chunk.Metadata.GetInt("chunk_index"); got != int64(i) {
			t.Errorf("chunk %d has index %d", i, got)
		}
		if got := chunk.Metadata.GetInt("total_chunks"); got != int64(store.Len()) {
			t.Errorf("chunk %d has total_chunks %d, want %d", i, got, store.Len())
		}
		i++
	}
}

func TestBuildDirectoryRecordsRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "registered document body")

	reg, err := storage.NewSQLiteRegistry(filepath.Join(t.TempDir(), "reg.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	embedder := embedding.NewMockEmbedder(32)
	b := NewBuilder(embedder, reg, nil, vectorstore.MetricCosine, nil)

	if _, err := b.BuildDirectory(context.Background(), dir); err != nil {
		t.Fatal(err)
	}

	n, err := reg.CountDocuments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("registry has %d documents, want 1", n)
	}
	docs, err := reg.ListDocuments(context.Background(), 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if docs[0].Name != "doc.txt" || docs[0].Chunks < 1 {
		t.Errorf("got %+v", docs[0])
	}
}

func TestRebuildSkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stable.txt", "this file does not change between builds")
	volatile := writeFile(t, dir, "volatile.txt", "first version of the text")

	reg, err := storage.NewSQLiteRegistry(filepath.Join(t.TempDir(), "reg.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	emb := &countingEmbedder{Embedder: embedding.NewMockEmbedder(32)}
	b := NewBuilder(emb, reg, nil, vectorstore.MetricCosine, nil)

	prev, err := b.BuildDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if prev.Len() != 2 {
		t.Fatalf("first build has %d chunks, want 2", prev.Len())
	}

	if err := os.WriteFile(volatile, []byte("second version, noticeably longer than before"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Force a distinct mtime in case the filesystem clock is coarse.
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(volatile, later, later); err != nil {
		t.Fatal(err)
	}

	emb.texts = 0
	store, err := b.Rebuild(context.Background(), dir, prev)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Fatalf("rebuilt store has %d chunks, want 2", store.Len())
	}
	if emb.texts != 1 {
		t.Errorf("rebuild embedded %d chunks, want only the changed file's", emb.texts)
	}

	contents := map[string]string{}
	for _, chunk := range store.All() {
		contents[chunk.Metadata.GetString("file_name")] = chunk.Content
	}
	if contents["stable.txt"] != "this file does not change between builds" {
		t.Errorf("stable chunk = %q, want the reused original", contents["stable.txt"])
	}
	if contents["volatile.txt"] != "second version, noticeably longer than before" {
		t.Errorf("volatile chunk = %q, want the re-ingested content", contents["volatile.txt"])
	}
}

func TestRebuildIgnoresPrevWithDifferentDimension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "content embedded at one dimension")

	reg, err := storage.NewSQLiteRegistry(filepath.Join(t.TempDir(), "reg.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	prev, err := NewBuilder(embedding.NewMockEmbedder(16), reg, nil, vectorstore.MetricCosine, nil).
		BuildDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}

	emb := &countingEmbedder{Embedder: embedding.NewMockEmbedder(32)}
	b := NewBuilder(emb, reg, nil, vectorstore.MetricCosine, nil)
	store, err := b.Rebuild(context.Background(), dir, prev)
	if err != nil {
		t.Fatal(err)
	}
	if store.Dim() != 32 || store.Len() != 1 {
		t.Fatalf("store dim %d len %d, want a fresh 32-dim build", store.Dim(), store.Len())
	}
	if emb.texts == 0 {
		t.Error("expected re-embedding when the prior store's dimension differs")
	}
}

func TestBuildDirectorySkipsHiddenDirs(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".git")
	if err := os.Mkdir(hidden, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, hidden, "config.txt", "should not be indexed")
	writeFile(t, dir, "visible.txt", "should be indexed")

	embedder := embedding.NewMockEmbedder(32)
	b := NewBuilder(embedder, nil, nil, vectorstore.MetricCosine, nil)

	store, err := b.BuildDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d chunks, want only the visible file", store.Len())
	}
}

func TestBuildDirectoryNotADirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "file.txt", "content")

	embedder := embedding.NewMockEmbedder(32)
	b := NewBuilder(embedder, nil, nil, vectorstore.MetricCosine, nil)
	if _, err := b.BuildDirectory(context.Background(), path); err == nil {
		t.Fatal("expected error for non-directory path")
	}
}

func TestBuildDirectoryEmptyDirYieldsEmptyStore(t *testing.T) {
	embedder := embedding.NewMockEmbedder(32)
	b := NewBuilder(embedder, nil, nil, vectorstore.MetricCosine, nil)
	store, err := b.BuildDirectory(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d chunks, want 0", store.Len())
	}
}
