// Package inbox watches a drop directory and feeds new or changed files to the
// ingestion pipeline.
package inbox

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/lexsearch/internal/fileid"
	"github.com/hyperjump/lexsearch/internal/indexer"
	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/hyperjump/lexsearch/pkg/utils"
)

const defaultDebounce = 400 * time.Millisecond

// Pipeline is the part of the ingestion pipeline the inbox drives.
type Pipeline interface {
	FileJob(ctx context.Context, path string, allowedExts []string, force bool) (*indexer.Job, error)
	Submit(ctx context.Context, job *indexer.Job) error
	Delete(ctx context.Context, id string) error
}

// Inbox watches a directory tree. Created or written files are submitted after a quiet
// period; removed files are deleted from the indices.
type Inbox struct {
	dir        string
	extensions []string
	pipeline   Pipeline
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending map[string]*time.Timer
	ctx     context.Context
	done    chan struct{}
	stop    sync.Once
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Inbox) { in.logger = l }
}

// WithDebounce sets how long a file must be quiet before it is submitted.
func WithDebounce(d time.Duration) Option {
	return func(in *Inbox) {
		if d > 0 {
			in.debounce = d
		}
	}
}

// New creates an inbox over dir. extensions filters files; empty accepts everything.
func New(dir string, extensions []string, pipeline Pipeline, opts ...Option) *Inbox {
	in := &Inbox{
		dir:        filepath.Clean(dir),
		extensions: extensions,
		pipeline:   pipeline,
		debounce:   defaultDebounce,
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = utils.OrNop(in.logger)
	return in
}

// Dir returns the watched directory.
func (in *Inbox) Dir() string { return in.dir }

// Start creates the directory if needed, watches it recursively and submits the files
// already present. It returns once watching has begun; events are handled until ctx is
// cancelled or Stop is called.
func (in *Inbox) Start(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	err = filepath.WalkDir(in.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = w.Close()
		return err
	}

	in.mu.Lock()
	in.watcher = w
	in.ctx = ctx
	in.mu.Unlock()

	in.logger.Info("Watching inbox", zap.String("dir", in.dir), zap.Strings("extensions", in.extensions))
	go in.run(ctx, w)
	in.syncDirectory(ctx, in.dir)
	return nil
}

func (in *Inbox) run(ctx context.Context, w *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			in.handleEvent(ctx, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			in.logger.Warn("Inbox watcher error", zap.Error(err))
		}
	}
}

func (in *Inbox) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	in.logger.Debug("Inbox event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			in.addDirectory(ctx, path)
			return
		}
		if matchExtension(path, in.extensions) {
			in.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		in.cancel(path)
		if matchExtension(path, in.extensions) {
			in.remove(ctx, path)
		}
	}
}

// addDirectory watches a directory moved or created under the inbox and submits its files.
func (in *Inbox) addDirectory(ctx context.Context, dir string) {
	in.mu.Lock()
	w := in.watcher
	in.mu.Unlock()
	if w == nil {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				in.logger.Debug("Inbox failed to watch directory", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
	in.syncDirectory(ctx, dir)
}

// schedule submits path once no further events arrive for the debounce period.
func (in *Inbox) schedule(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.watcher == nil {
		return
	}
	if t, ok := in.pending[path]; ok {
		t.Stop()
	}
	in.pending[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.pending, path)
		ctx := in.ctx
		in.mu.Unlock()
		in.submit(ctx, path)
	})
}

func (in *Inbox) cancel(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.pending[path]; ok {
		t.Stop()
		delete(in.pending, path)
	}
}

func (in *Inbox) submit(ctx context.Context, path string) {
	if ctx == nil || ctx.Err() != nil {
		return
	}
	job, err := in.pipeline.FileJob(ctx, path, in.extensions, false)
	if err != nil {
		in.logger.Warn("Inbox could not read file", zap.String("path", path), zap.Error(err))
		return
	}
	if err := in.pipeline.Submit(ctx, job); err != nil {
		in.logger.Warn("Inbox could not submit file", zap.String("path", path), zap.Error(err))
		return
	}
	in.logger.Debug("Inbox submitted file", zap.String("path", path), zap.String("doc_id", job.DocumentID))
}

func (in *Inbox) remove(ctx context.Context, path string) {
	id := fileid.FileDocID(path)
	err := in.pipeline.Delete(ctx, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		in.logger.Warn("Inbox could not delete document", zap.String("path", path), zap.Error(err))
	default:
		in.logger.Info("Removed document for deleted file", zap.String("path", path), zap.String("doc_id", id))
	}
}

func (in *Inbox) syncDirectory(ctx context.Context, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if matchExtension(path, in.extensions) {
			in.submit(ctx, path)
		}
		return nil
	})
}

// Stop stops watching. Debounced files that have not fired are dropped.
func (in *Inbox) Stop() {
	in.mu.Lock()
	for path, t := range in.pending {
		t.Stop()
		delete(in.pending, path)
	}
	w := in.watcher
	in.watcher = nil
	in.mu.Unlock()
	if w != nil {
		_ = w.Close()
	}
	in.stop.Do(func() { close(in.done) })
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
