package listener

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"quoteintake/internal"
	"quoteintake/internal/pipeline"
)

const (
	processedDir = "processed"
	maxRetryWait = 5 * time.Minute
)

type pendingFile struct {
	at       time.Time
	attempts int
}

// DropDir ingests price lists copied into a directory. A file is picked up
// once it has not been written to for the settle period, and is moved to the
// processed/ subdirectory afterwards. A file that fails with a retryable
// error stays in place and is tried again with a growing delay.
type DropDir struct {
	dir       string
	processor *pipeline.ProcessingService
	settle    time.Duration
	logger    *slog.Logger
}

func NewDropDir(dir string, processor *pipeline.ProcessingService, settle time.Duration, logger *slog.Logger) *DropDir {
	if logger == nil {
		logger = slog.Default()
	}
	if settle <= 0 {
		settle = time.Second
	}
	return &DropDir{dir: dir, processor: processor, settle: settle, logger: logger}
}

// Run watches until ctx is cancelled. Files already in the directory are
// handled first.
func (d *DropDir) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(d.dir, processedDir), 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(d.dir); err != nil {
		return err
	}

	pending := map[string]pendingFile{}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			pending[filepath.Join(d.dir, e.Name())] = pendingFile{}
		}
	}

	ticker := time.NewTicker(d.settle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				p := pending[ev.Name]
				p.at = time.Now()
				pending[ev.Name] = p
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("dropdir.watch.error", "dir", d.dir, "err", err)
		case now := <-ticker.C:
			for name, p := range pending {
				if now.Sub(p.at) < d.settle {
					continue
				}
				delete(pending, name)
				if d.handle(ctx, name) {
					p.attempts++
					pending[name] = pendingFile{at: now.Add(d.backoff(p.attempts)), attempts: p.attempts}
				}
			}
		}
	}
}

func (d *DropDir) backoff(attempts int) time.Duration {
	return min(d.settle<<min(attempts, 10), maxRetryWait)
}

// handle ingests one file and reports whether it should be tried again.
func (d *DropDir) handle(ctx context.Context, path string) bool {
	base := filepath.Base(path)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || strings.HasPrefix(base, ".") {
		return false
	}
	if pipeline.Dispatch(base, "") == internal.KindUnsupported {
		d.logger.Info("dropdir.skipped", "file", base)
		return false
	}

	res, err := d.processor.ProcessFile(ctx, path)
	if err != nil {
		retryable := pipeline.IsRetryable(err)
		d.logger.Warn("dropdir.failed", "file", base, "retryable", retryable, "err", err)
		if retryable {
			return ctx.Err() == nil
		}
	} else {
		d.logger.Info("dropdir.done", "file", base, "state", res.State, "items", res.Items, "output", res.Path)
	}

	if err := os.Rename(path, filepath.Join(d.dir, processedDir, base)); err != nil {
		d.logger.Warn("dropdir.move_failed", "file", base, "err", err)
	}
	return false
}
