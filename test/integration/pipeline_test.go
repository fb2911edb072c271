package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/ingest"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/retrieval"
	"github.com/hyperjump/kotaeru/internal/storage"
	"github.com/hyperjump/kotaeru/internal/vectorstore"
)

type echoRewriter struct{}

func (echoRewriter) Rewrite(_ context.Context, query string, n int) ([]string, error) {
	variants := []string{query}
	for i := 0; i < n; i++ {
		variants = append(variants, query+" rephrased")
	}
	return variants, nil
}

// TestIngestPersistRetrieve runs the full pipeline: build an index from
// files on disk, persist it, load it back, and run fused retrieval over it.
func TestIngestPersistRetrieve(t *testing.T) {
	docs := t.TempDir()
	files := map[string]string{
		"backup.md":  "Backups run nightly and are retained for thirty days before deletion.",
		"deploy.md":  "Deployments go through staging first and require a green test run.",
		"oncall.txt": "The on-call rotation hands over every Monday at 09:00 UTC.",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(docs, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	embedder := embedding.NewMockEmbedder(64)
	reg, err := storage.NewSQLiteRegistry(filepath.Join(t.TempDir(), "reg.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	builder := ingest.NewBuilder(embedder, reg, nil, vectorstore.MetricCosine, nil)
	built, err := builder.BuildDirectory(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	if built.Len() != 3 {
		t.Fatalf("built store has %d chunks, want 3", built.Len())
	}

	base := filepath.Join(t.TempDir(), "index", "store")
	if err := built.Save(base); err != nil {
		t.Fatal(err)
	}
	loaded, err := vectorstore.Load(base, embedder.Dimensions())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != built.Len() {
		t.Fatalf("loaded %d chunks, want %d", loaded.Len(), built.Len())
	}

	retriever := retrieval.New(loaded, embedder, echoRewriter{}, nil)
	fused, err := retriever.RetrieveFused(context.Background(), models.RetrieveRequest{
		Query:         files["backup.md"],
		K:             3,
		MinScore:      -1,
		NumVariations: 2,
		KPerQuery:     3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if fused.Degraded {
		t.Error("unexpected degraded flag")
	}
	if len(fused.Results) == 0 {
		t.Fatal("no results")
	}
	if !strings.Contains(fused.Results[0].Content, "Backups run nightly") {
		t.Errorf("top result = %q, want the backup chunk", fused.Results[0].Content)
	}
	if fused.Results[0].SimilarityScore < 0.999 {
		t.Errorf("top score = %f, want ~1.0 for the exact content", fused.Results[0].SimilarityScore)
	}
	if name := fused.Results[0].Metadata.GetString("file_name"); name != "backup.md" {
		t.Errorf("file_name = %q", name)
	}

	// Registry tracked every ingested file.
	n, err := reg.CountDocuments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("registry has %d documents, want 3", n)
	}
}
