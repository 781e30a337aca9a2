package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "documents.db")
	require.NoError(t, os.WriteFile(db, []byte("hello"), 0644))
	index := filepath.Join(dir, "bleve")
	require.NoError(t, os.MkdirAll(filepath.Join(index, "store"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(index, "meta"), []byte("ab"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(index, "store", "seg"), []byte("c"), 0644))

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{db}, 5},
		{"directory tree", []string{index}, 3},
		{"file and directory", []string{db, index}, 8},
		{"missing path skipped", []string{db, filepath.Join(dir, "absent"), index}, 8},
		{"empty and memory paths skipped", []string{"", ":memory:", db}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
