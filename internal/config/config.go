// Package config provides configuration loading and structs for the Kotaeru server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/kotaeru/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig holds the vector store and registry locations. BasePath is the
// path prefix the store's three files are derived from.
type StoreConfig struct {
	BasePath     string `yaml:"base_path"`
	DatabasePath string `yaml:"database_path"`
	Metric       string `yaml:"metric"`
}

// EmbeddingConfig selects and tunes the embedding provider.
// Provider is "onnx", "openai", or "mock".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// LLMConfig configures the chat model used for query rewriting and answer
// generation. Leaving Model empty disables LLM features.
type LLMConfig struct {
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// RetrievalConfig holds query-time defaults.
type RetrievalConfig struct {
	DefaultK      int     `yaml:"default_k"`
	MaxK          int     `yaml:"max_k"`
	KPerQuery     int     `yaml:"k_per_query"`
	MinScore      float64 `yaml:"min_score"`
	NumVariations int     `yaml:"num_variations"`
}

// IngestConfig holds document directory and chunking settings.
type IngestConfig struct {
	Directory    string `yaml:"directory"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Store.BasePath = expandPath(cfg.Store.BasePath, configDir)
	cfg.Store.DatabasePath = expandPath(cfg.Store.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Ingest.Directory = expandPath(cfg.Ingest.Directory, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Normalize validates req and fills unset fields from the configured
// retrieval defaults. K is clamped to MaxK. A num_variations of zero means
// "use the configured default"; a negative value disables rewriting.
func (r RetrievalConfig) Normalize(req *models.RetrieveRequest) error {
	if req.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if req.K <= 0 {
		req.K = r.DefaultK
	}
	if r.MaxK > 0 && req.K > r.MaxK {
		req.K = r.MaxK
	}
	if req.MinScore <= 0 {
		req.MinScore = r.MinScore
	}
	switch {
	case req.NumVariations == 0:
		req.NumVariations = r.NumVariations
	case req.NumVariations < 0:
		req.NumVariations = 0
	}
	if req.NumVariations > models.MaxVariants {
		req.NumVariations = models.MaxVariants
	}
	if req.KPerQuery <= 0 {
		req.KPerQuery = r.KPerQuery
	}
	return nil
}

// APIKey resolves the API key for the embedding provider from its configured
// environment variable.
func (e *EmbeddingConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// APIKey resolves the LLM API key from its configured environment variable.
func (l *LLMConfig) APIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
