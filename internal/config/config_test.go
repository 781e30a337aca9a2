package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./test.db"
ingest:
  workers: 8
search:
  branch_timeout: 2s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath != filepath.Join(dir, "test.db") {
		t.Errorf("database_path = %q, want relative to config dir", cfg.Storage.DatabasePath)
	}
	if cfg.Ingest.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Ingest.Workers)
	}
	if cfg.Search.BranchTimeout != 2*time.Second {
		t.Errorf("branch_timeout = %v, want 2s", cfg.Search.BranchTimeout)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_invalidProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("embedding:\n  provider: word2vec\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown embedding provider")
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Ingest.ChunkSize != 1000 {
		t.Errorf("chunk_size = %d, want 1000", cfg.Ingest.ChunkSize)
	}
	if cfg.Ingest.MinTextChars != 100 || cfg.Ingest.OCRMaxPages != 10 {
		t.Errorf("extraction defaults = %d/%d", cfg.Ingest.MinTextChars, cfg.Ingest.OCRMaxPages)
	}
	if cfg.Search.SemanticWeight != 0.7 || cfg.Search.KeywordWeight != 0.3 {
		t.Errorf("weights = %v/%v", cfg.Search.SemanticWeight, cfg.Search.KeywordWeight)
	}
	if cfg.Search.DefaultLimit != 10 || cfg.Search.MaxLimit != 50 {
		t.Errorf("limits = %d/%d", cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	}
	if cfg.Embedding.Provider != "hash" || cfg.Vector.Backend != "memory" {
		t.Errorf("provider/backend = %s/%s", cfg.Embedding.Provider, cfg.Vector.Backend)
	}
	if got := cfg.Ingest.MaxFileBytes(); got != 50*1024*1024 {
		t.Errorf("MaxFileBytes = %d", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_keepsExplicitWeights(t *testing.T) {
	cfg := &Config{Search: SearchConfig{SemanticWeight: 1, KeywordWeight: 0}}
	ApplyDefaults(cfg)
	if cfg.Search.SemanticWeight != 1 || cfg.Search.KeywordWeight != 0 {
		t.Errorf("weights overwritten: %v/%v", cfg.Search.SemanticWeight, cfg.Search.KeywordWeight)
	}
}
