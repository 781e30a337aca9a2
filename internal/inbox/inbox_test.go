package inbox

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/lexsearch/internal/fileid"
	"github.com/hyperjump/lexsearch/internal/indexer"
	"github.com/hyperjump/lexsearch/internal/models"
)

type fakePipeline struct {
	mu        sync.Mutex
	submitted []string
	deleted   []string
}

func (f *fakePipeline) FileJob(_ context.Context, path string, _ []string, force bool) (*indexer.Job, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &indexer.Job{
		DocumentID: fileid.FileDocID(path),
		Filename:   filepath.Base(path),
		Content:    content,
		Force:      force,
		Metadata:   map[string]interface{}{"source_path": path},
	}, nil
}

func (f *fakePipeline) Submit(_ context.Context, job *indexer.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, job.Metadata["source_path"].(string))
	return nil
}

func (f *fakePipeline) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return models.ErrNotFound
}

func (f *fakePipeline) snapshot() (submitted, deleted []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submitted...), append([]string(nil), f.deleted...)
}

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func startInbox(t *testing.T, dir string) (*Inbox, *fakePipeline) {
	t.Helper()
	fp := &fakePipeline{}
	in := New(dir, []string{".txt", ".pdf"}, fp, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		in.Stop()
		cancel()
	})
	require.NoError(t, in.Start(ctx))
	return in, fp
}

func TestInbox_SubmitsExistingFiles(t *testing.T) {
	dir := tempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lease.txt"), []byte("lease"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.xyz"), []byte("skip"), 0o644))

	_, fp := startInbox(t, dir)

	submitted, _ := fp.snapshot()
	assert.Equal(t, []string{filepath.Join(dir, "lease.txt")}, submitted)
}

func TestInbox_DebouncesNewFiles(t *testing.T) {
	dir := tempDir(t)
	_, fp := startInbox(t, dir)

	path := filepath.Join(dir, "contract.txt")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("first draft, revised"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("png"), 0o644))

	assert.Eventually(t, func() bool {
		submitted, _ := fp.snapshot()
		return len(submitted) == 1 && submitted[0] == path
	}, 2*time.Second, 20*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	submitted, _ := fp.snapshot()
	assert.Len(t, submitted, 1)
}

func TestInbox_NewDirectory(t *testing.T) {
	dir := tempDir(t)
	_, fp := startInbox(t, dir)

	staging := filepath.Join(tempDir(t), "batch")
	require.NoError(t, os.MkdirAll(staging, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "order.pdf"), []byte("%PDF"), 0o644))
	require.NoError(t, os.Rename(staging, filepath.Join(dir, "batch")))

	want := filepath.Join(dir, "batch", "order.pdf")
	assert.Eventually(t, func() bool {
		submitted, _ := fp.snapshot()
		for _, s := range submitted {
			if s == want {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestInbox_RemovedFileDeletesDocument(t *testing.T) {
	dir := tempDir(t)
	path := filepath.Join(dir, "brief.txt")
	require.NoError(t, os.WriteFile(path, []byte("brief"), 0o644))
	_, fp := startInbox(t, dir)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		_, deleted := fp.snapshot()
		return len(deleted) == 1 && deleted[0] == fileid.FileDocID(path)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestInbox_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(tempDir(t), "drop", "here")
	in, _ := startInbox(t, dir)

	info, err := os.Stat(in.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{"txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchExtension(tt.path, tt.extensions), tt.path)
	}
}
