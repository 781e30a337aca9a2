// Package config provides configuration loading and structs for the lexsearch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// EmbeddingConfig selects and configures the embedding model.
type EmbeddingConfig struct {
	// Provider is one of "hash", "onnx", "openai".
	Provider          string      `yaml:"provider"`
	ModelPath         string      `yaml:"model_path"`
	Model             string      `yaml:"model"`
	Dimensions        int         `yaml:"dimensions"`
	MaxTokens         int         `yaml:"max_tokens"`
	CacheSize         int         `yaml:"cache_size"`
	APIKeyEnv         string      `yaml:"api_key_env"`
	BaseURL           string      `yaml:"base_url"`
	RequestsPerSecond float64     `yaml:"requests_per_second"`
	Redis             RedisConfig `yaml:"redis"`
}

// RedisConfig configures the optional shared embedding cache. Empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	// Backend is "memory" or "milvus".
	Backend string       `yaml:"backend"`
	Milvus  MilvusConfig `yaml:"milvus"`
}

// MilvusConfig holds Milvus connection settings.
type MilvusConfig struct {
	Address    string `yaml:"address"`
	Collection string `yaml:"collection"`
}

// IngestConfig holds pipeline, extraction, and chunking settings.
type IngestConfig struct {
	Workers           int      `yaml:"workers"`
	EmbedConcurrency  int      `yaml:"embed_concurrency"`
	ChunkSize         int      `yaml:"chunk_size"`
	MinTextChars      int      `yaml:"min_text_chars"`
	OCRMaxPages       int      `yaml:"ocr_max_pages"`
	OCRLanguage       string   `yaml:"ocr_language"`
	MaxFileSizeMB     int      `yaml:"max_file_size_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	InboxDir          string   `yaml:"inbox_dir"`
	PdftotextPath     string   `yaml:"pdftotext_path"`
	PdftoppmPath      string   `yaml:"pdftoppm_path"`
	TesseractPath     string   `yaml:"tesseract_path"`
}

// MaxFileBytes returns the upload size limit in bytes.
func (c *IngestConfig) MaxFileBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// SearchConfig holds retrieval and fusion settings.
type SearchConfig struct {
	DefaultLimit      int           `yaml:"default_limit"`
	MaxLimit          int           `yaml:"max_limit"`
	SemanticWeight    float64       `yaml:"semantic_weight"`
	KeywordWeight     float64       `yaml:"keyword_weight"`
	BranchTimeout     time.Duration `yaml:"branch_timeout"`
	TopKCandidates    int           `yaml:"top_k_candidates"`
	KeywordCandidates int           `yaml:"keyword_candidates"`
	SnippetLength     int           `yaml:"snippet_length"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Ingest.InboxDir != "" {
		cfg.Ingest.InboxDir = expandPath(cfg.Ingest.InboxDir, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "hash", "onnx", "openai":
	default:
		return fmt.Errorf("unknown embedding provider %q (supported: hash, onnx, openai)", c.Embedding.Provider)
	}
	switch c.Vector.Backend {
	case "memory", "milvus":
	default:
		return fmt.Errorf("unknown vector backend %q (supported: memory, milvus)", c.Vector.Backend)
	}
	if c.Search.SemanticWeight < 0 || c.Search.KeywordWeight < 0 {
		return fmt.Errorf("search weights must not be negative")
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("default_limit %d exceeds max_limit %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
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
