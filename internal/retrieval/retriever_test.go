package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/vectorstore"
)

const testDims = 64

func buildStore(t *testing.T, embedder embedding.Embedder, contents []string) *vectorstore.Store {
	t.Helper()
	store, err := vectorstore.New(testDims, vectorstore.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := embedder.EmbedBatch(context.Background(), contents)
	if err != nil {
		t.Fatal(err)
	}
	chunks := make([]*models.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = &models.Chunk{Content: c}
	}
	if err := store.AddVectors(vecs, chunks); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestRetrieveExactMatchFirst(t *testing.T) {
	embedder := embedding.NewMockEmbedder(testDims)
	store := buildStore(t, embedder, []string{
		"the quick brown fox",
		"an entirely different sentence",
		"yet another unrelated chunk",
	})
	r := New(store, embedder, nil, nil)

	got, err := r.Retrieve(context.Background(), "an entirely different sentence", 3, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Content != "an entirely different sentence" {
		t.Errorf("top result = %q, want exact match", got[0].Content)
	}
	if got[0].SimilarityScore < 0.999 {
		t.Errorf("top score = %f, want ~1.0", got[0].SimilarityScore)
	}
}

func TestRetrieveMinScoreFilters(t *testing.T) {
	embedder := embedding.NewMockEmbedder(testDims)
	store := buildStore(t, embedder, []string{"alpha", "beta", "gamma"})
	r := New(store, embedder, nil, nil)

	got, err := r.Retrieve(context.Background(), "alpha", 3, 0.999)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results above 0.999, want only the exact match", len(got))
	}
	if got[0].Content != "alpha" {
		t.Errorf("got %q", got[0].Content)
	}
}

func TestRetrieveEmptyStore(t *testing.T) {
	embedder := embedding.NewMockEmbedder(testDims)
	r := New(nil, embedder, nil, nil)
	if _, err := r.Retrieve(context.Background(), "anything", 3, 0); !errors.Is(err, ErrEmptyStore) {
		t.Fatalf("err = %v, want ErrEmptyStore", err)
	}

	empty, _ := vectorstore.New(testDims, vectorstore.MetricCosine)
	r.Swap(empty)
	if _, err := r.Retrieve(context.Background(), "anything", 3, 0); !errors.Is(err, ErrEmptyStore) {
		t.Fatalf("err = %v, want ErrEmptyStore for zero-length store", err)
	}
}

func TestSwapPublishesNewStore(t *testing.T) {
	embedder := embedding.NewMockEmbedder(testDims)
	r := New(buildStore(t, embedder, []string{"old content"}), embedder, nil, nil)

	r.Swap(buildStore(t, embedder, []string{"new content"}))

	got, err := r.Retrieve(context.Background(), "new content", 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Content != "new content" {
		t.Errorf("got %q after swap", got[0].Content)
	}
	if r.Stats().NumVectors != 1 {
		t.Errorf("stats = %+v", r.Stats())
	}
}

func TestRetrieveCopiesMetadata(t *testing.T) {
	embedder := embedding.NewMockEmbedder(testDims)
	store, _ := vectorstore.New(testDims, vectorstore.MetricCosine)
	chunk := &models.Chunk{Content: "metadata carrier"}
	chunk.Metadata = chunk.Metadata.Set("file_name", "a.txt")
	vec, _ := embedder.Embed(context.Background(), chunk.Content)
	if err := store.AddVectors([][]float32{vec}, []*models.Chunk{chunk}); err != nil {
		t.Fatal(err)
	}
	r := New(store, embedder, nil, nil)

	got, err := r.Retrieve(context.Background(), "metadata carrier", 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	got[0].Metadata = got[0].Metadata.Set("file_name", "mutated.txt")

	if name := chunk.Metadata.GetString("file_name"); name != "a.txt" {
		t.Errorf("stored chunk metadata mutated via result: %q", name)
	}
}
