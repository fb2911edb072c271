package vectorstore

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/hyperjump/kotaeru/internal/models"
)

// FormatVersion is the on-disk format version written to the metadata block.
const FormatVersion = 1

// On-disk layout: three files sharing a base path. The metadata block is
// read first on load and validates the other two.
const (
	metaSuffix   = ".meta.json"
	vectorSuffix = ".vec"
	chunksSuffix = ".chunks.json"
)

// Files returns the paths of the three on-disk blocks for basePath.
func Files(basePath string) []string {
	return []string{
		basePath + metaSuffix,
		basePath + vectorSuffix,
		basePath + chunksSuffix,
	}
}

type storeMeta struct {
	FormatVersion int    `json:"format_version"`
	EmbeddingDim  int    `json:"embedding_dim"`
	NumVectors    int    `json:"num_vectors"`
	Metric        Metric `json:"similarity_metric"`
}

// Save writes the store to basePath + {.meta.json,.vec,.chunks.json}. All
// three files are written to temporary paths and renamed into place only
// after every write succeeded, so a failure never leaves the three blocks
// inconsistent with each other.
func (s *Store) Save(basePath string) error {
	if basePath == "" {
		return fmt.Errorf("save store: empty base path")
	}
	if dir := filepath.Dir(basePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}

	meta := storeMeta{
		FormatVersion: FormatVersion,
		EmbeddingDim:  s.dim,
		NumVectors:    len(s.vectors),
		Metric:        s.metric,
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	chunks := s.chunks
	if chunks == nil {
		chunks = []*models.Chunk{}
	}
	chunkBytes, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}

	tmp := func(suffix string) string { return basePath + suffix + ".tmp" }
	cleanup := func() {
		for _, suffix := range []string{metaSuffix, vectorSuffix, chunksSuffix} {
			_ = os.Remove(tmp(suffix))
		}
	}

	if err := os.WriteFile(tmp(metaSuffix), metaBytes, 0644); err != nil {
		cleanup()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := s.writeVectorBlock(tmp(vectorSuffix)); err != nil {
		cleanup()
		return err
	}
	if err := os.WriteFile(tmp(chunksSuffix), chunkBytes, 0644); err != nil {
		cleanup()
		return fmt.Errorf("write chunks: %w", err)
	}

	for _, suffix := range []string{metaSuffix, vectorSuffix, chunksSuffix} {
		if err := os.Rename(tmp(suffix), basePath+suffix); err != nil {
			cleanup()
			return fmt.Errorf("rename %s into place: %w", suffix, err)
		}
	}
	return nil
}

// writeVectorBlock writes vectors as a flat row-major sequence of
// little-endian float32 values.
func (s *Store) writeVectorBlock(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector block: %w", err)
	}
	w := bufio.NewWriter(f)
	row := make([]byte, s.dim*4)
	for _, vec := range s.vectors {
		for i, v := range vec {
			binary.LittleEndian.PutUint32(row[i*4:], math.Float32bits(v))
		}
		if _, err := w.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("write vector block: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush vector block: %w", err)
	}
	return f.Close()
}

// Load reads a store from basePath. The metadata block is validated first:
// the persisted dimension must equal expectedDim, the vector block length
// must be num_vectors rows of that dimension, and the chunk block must hold
// exactly num_vectors records. Any disagreement fails with ErrCorruptStore
// before a store is constructed.
func Load(basePath string, expectedDim int) (*Store, error) {
	metaBytes, err := os.ReadFile(basePath + metaSuffix)
	if err != nil {
		return nil, fmt.Errorf("read store metadata: %w", err)
	}
	var meta storeMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("%w: bad metadata block: %v", ErrCorruptStore, err)
	}
	if meta.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d", ErrCorruptStore, meta.FormatVersion, FormatVersion)
	}
	if meta.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("%w: non-positive embedding dimension %d", ErrCorruptStore, meta.EmbeddingDim)
	}
	if meta.EmbeddingDim != expectedDim {
		return nil, fmt.Errorf("%w: store has dimension %d, expected %d", ErrDimensionMismatch, meta.EmbeddingDim, expectedDim)
	}
	if meta.NumVectors < 0 {
		return nil, fmt.Errorf("%w: negative vector count %d", ErrCorruptStore, meta.NumVectors)
	}
	metric, err := ParseMetric(string(meta.Metric))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	vectors, err := readVectorBlock(basePath+vectorSuffix, meta.EmbeddingDim, meta.NumVectors)
	if err != nil {
		return nil, err
	}

	chunkBytes, err := os.ReadFile(basePath + chunksSuffix)
	if err != nil {
		return nil, fmt.Errorf("read chunk block: %w", err)
	}
	var chunks []*models.Chunk
	if err := json.Unmarshal(chunkBytes, &chunks); err != nil {
		return nil, fmt.Errorf("%w: bad chunk block: %v", ErrCorruptStore, err)
	}
	if len(chunks) != meta.NumVectors {
		return nil, fmt.Errorf("%w: chunk block has %d records, metadata claims %d vectors", ErrCorruptStore, len(chunks), meta.NumVectors)
	}

	return &Store{dim: meta.EmbeddingDim, metric: metric, vectors: vectors, chunks: chunks}, nil
}

func readVectorBlock(path string, dim, count int) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vector block: %w", err)
	}
	rowBytes := dim * 4
	if len(data)%rowBytes != 0 {
		return nil, fmt.Errorf("%w: vector block is %d bytes, not a multiple of %d (dim %d)", ErrCorruptStore, len(data), rowBytes, dim)
	}
	if len(data)/rowBytes != count {
		return nil, fmt.Errorf("%w: vector block holds %d vectors, metadata claims %d", ErrCorruptStore, len(data)/rowBytes, count)
	}
	vectors := make([][]float32, count)
	for i := 0; i < count; i++ {
		row := data[i*rowBytes : (i+1)*rowBytes]
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(row[j*4:]))
		}
		vectors[i] = vec
	}
	return vectors, nil
}
