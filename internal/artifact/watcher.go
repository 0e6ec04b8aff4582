package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher feeds a staging collection from job output directories as files
// appear, so long-running builds hand over artifacts without an explicit
// collect step. Each watched directory belongs to exactly one producing job.
type Watcher struct {
	staging *Staging
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu   sync.Mutex
	dirs map[string]watchTarget
	seen map[string][]Artifact

	done chan struct{}
}

type watchTarget struct {
	jobID    string
	kind     Kind
	platform string
}

// NewWatcher starts a watcher that collects into staging. Callers must Close
// it to release the underlying inotify handle.
func NewWatcher(staging *Staging, logger *zap.Logger) (*Watcher, error) {
	if staging == nil {
		return nil, fmt.Errorf("artifact: watcher requires a staging collection")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("artifact: start watcher: %w", err)
	}
	w := &Watcher{
		staging: staging,
		watcher: fsw,
		logger:  logger,
		dirs:    map[string]watchTarget{},
		seen:    map[string][]Artifact{},
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Watch registers dir as the output location for jobID. Files created or
// written under it are recorded as artifacts of the given kind.
func (w *Watcher) Watch(dir, jobID string, kind Kind, platform string) error {
	if jobID == "" {
		return fmt.Errorf("artifact: watch requires a job id")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("artifact: resolve %s: %w", dir, err)
	}
	w.mu.Lock()
	w.dirs[abs] = watchTarget{jobID: jobID, kind: kind, platform: platform}
	w.mu.Unlock()
	if err := w.watcher.Add(abs); err != nil {
		return fmt.Errorf("artifact: watch %s: %w", abs, err)
	}
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.handle(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("artifact watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	w.mu.Lock()
	target, ok := w.dirs[filepath.Dir(path)]
	w.mu.Unlock()
	if !ok {
		return
	}
	art, err := FromFile(path, target.kind, target.jobID, w.staging.now())
	if err != nil {
		// Partially written files can fail checksumming; the next write
		// event retries.
		w.logger.Debug("artifact not yet collectable", zap.String("path", path), zap.Error(err))
		return
	}
	art.Platform = target.platform

	w.mu.Lock()
	current := w.seen[target.jobID]
	replaced := false
	for i, existing := range current {
		if existing.Path == art.Path {
			current[i] = art
			replaced = true
			break
		}
	}
	if !replaced {
		current = append(current, art)
	}
	w.seen[target.jobID] = current
	snapshot := make([]Artifact, len(current))
	copy(snapshot, current)
	w.mu.Unlock()

	if err := w.staging.Collect(target.jobID, snapshot); err != nil {
		w.logger.Warn("artifact collect failed", zap.String("job", target.jobID), zap.Error(err))
		return
	}
	w.logger.Info("artifact staged",
		zap.String("job", target.jobID),
		zap.String("file", art.Name()),
		zap.String("kind", string(art.Kind)))
}
