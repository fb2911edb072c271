package vectorstore

import (
	"errors"
	"testing"

	"github.com/hyperjump/kotaeru/internal/models"
)

func chunk(content string) *models.Chunk {
	return &models.Chunk{Content: content}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(0, MetricCosine); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(0): err = %v, want ErrInvalidConfig", err)
	}
	if _, err := New(-3, MetricCosine); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(-3): err = %v, want ErrInvalidConfig", err)
	}
	if _, err := New(4, Metric("manhattan")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(manhattan): err = %v, want ErrInvalidConfig", err)
	}
}

func TestNew_EmptyMetricDefaultsToCosine(t *testing.T) {
	s, err := New(4, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Metric() != MetricCosine {
		t.Errorf("Metric() = %q, want cosine", s.Metric())
	}
}

func TestAddVectors_AppendsInOrder(t *testing.T) {
	s, err := New(2, MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	err = s.AddVectors(
		[][]float32{{1, 0}, {0, 1}},
		[]*models.Chunk{chunk("first"), chunk("second")},
	)
	if err != nil {
		t.Fatalf("AddVectors: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}

	var contents []string
	for _, ch := range s.All() {
		contents = append(contents, ch.Content)
	}
	if len(contents) != 2 || contents[0] != "first" || contents[1] != "second" {
		t.Errorf("iteration order = %v", contents)
	}
}

func TestAddVectors_LengthMismatchLeavesStoreUnchanged(t *testing.T) {
	s, _ := New(2, MetricCosine)
	if err := s.AddVectors([][]float32{{1, 0}}, []*models.Chunk{chunk("a")}); err != nil {
		t.Fatal(err)
	}

	err := s.AddVectors([][]float32{{1, 0}, {0, 1}}, []*models.Chunk{chunk("b")})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d after failed append, want 1", s.Len())
	}
}

func TestAddVectors_BadDimensionLeavesStoreUnchanged(t *testing.T) {
	s, _ := New(3, MetricCosine)
	// Second vector has the wrong dimension; nothing may be appended.
	err := s.AddVectors(
		[][]float32{{1, 0, 0}, {1, 0}},
		[]*models.Chunk{chunk("a"), chunk("b")},
	)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after failed append, want 0 (no partial append)", s.Len())
	}
}

func TestAddVectors_CopiesInput(t *testing.T) {
	s, _ := New(2, MetricDot)
	vec := []float32{1, 2}
	if err := s.AddVectors([][]float32{vec}, []*models.Chunk{chunk("a")}); err != nil {
		t.Fatal(err)
	}
	vec[0] = 99
	results, err := s.Search([]float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Score != 1 {
		t.Errorf("score = %f; stored vector aliases caller's slice", results[0].Score)
	}
}

func TestStats(t *testing.T) {
	s, _ := New(4, MetricEuclidean)
	st := s.Stats()
	if st.NumVectors != 0 || st.EmbeddingDim != 4 || st.Metric != MetricEuclidean {
		t.Errorf("Stats = %+v", st)
	}
	_ = s.AddVectors([][]float32{{1, 2, 3, 4}}, []*models.Chunk{chunk("a")})
	if got := s.Stats().NumVectors; got != 1 {
		t.Errorf("NumVectors = %d, want 1", got)
	}
}

func TestAll_Restartable(t *testing.T) {
	s, _ := New(2, MetricCosine)
	_ = s.AddVectors([][]float32{{1, 0}, {0, 1}}, []*models.Chunk{chunk("a"), chunk("b")})

	seq := s.All()
	for range 2 { // two full passes over the same sequence
		n := 0
		first := ""
		for _, ch := range seq {
			if n == 0 {
				first = ch.Content
			}
			n++
		}
		if n != 2 || first != "a" {
			t.Fatalf("pass yielded %d items starting at %q, want 2 starting at \"a\"", n, first)
		}
	}
}

func TestAll_EarlyBreak(t *testing.T) {
	s, _ := New(2, MetricCosine)
	_ = s.AddVectors([][]float32{{1, 0}, {0, 1}, {1, 1}},
		[]*models.Chunk{chunk("a"), chunk("b"), chunk("c")})
	n := 0
	for range s.All() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d, want 2", n)
	}
}
