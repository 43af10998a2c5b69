// Package observer watches an inbox directory for dropped manifest
// files and submits them as missions.
package observer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// SubmitFunc receives the path of a manifest file ready to submit
type SubmitFunc func(ctx context.Context, path string) error

// InboxWatcher monitors a directory for new manifest files. Processed
// files are renamed with a .submitted or .failed suffix so a restart
// never resubmits them.
type InboxWatcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	submit   SubmitFunc
	debounce time.Duration
	log      zerolog.Logger

	// Debounce state
	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewInboxWatcher creates a watcher over the given inbox directory,
// creating the directory if it does not exist
func NewInboxWatcher(dir string, submit SubmitFunc, log zerolog.Logger) (*InboxWatcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating inbox dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &InboxWatcher{
		dir:      dir,
		watcher:  watcher,
		submit:   submit,
		debounce: 500 * time.Millisecond, // Debounce editors that write in chunks
		log:      log,
		pending:  make(map[string]struct{}),
	}, nil
}

// SetDebounce sets the debounce duration for batching file events
func (iw *InboxWatcher) SetDebounce(d time.Duration) {
	iw.mu.Lock()
	defer iw.mu.Unlock()
	iw.debounce = d
}

// Start begins watching. Files already sitting in the inbox are
// submitted immediately.
func (iw *InboxWatcher) Start(ctx context.Context) error {
	iw.ctx, iw.cancel = context.WithCancel(ctx)

	if err := iw.drainExisting(); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-iw.ctx.Done():
				return
			case event, ok := <-iw.watcher.Events:
				if !ok {
					return
				}
				iw.handleEvent(event)
			case err, ok := <-iw.watcher.Errors:
				if !ok {
					return
				}
				iw.log.Warn().Err(err).Msg("inbox watcher error")
			}
		}
	}()

	return nil
}

// Stop stops watching for new files
func (iw *InboxWatcher) Stop() {
	if iw.cancel != nil {
		iw.cancel()
	}
	iw.watcher.Close()
}

func (iw *InboxWatcher) drainExisting() error {
	entries, err := os.ReadDir(iw.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !isManifest(entry.Name()) {
			continue
		}
		iw.process(filepath.Join(iw.dir, entry.Name()))
	}
	return nil
}

func (iw *InboxWatcher) handleEvent(event fsnotify.Event) {
	if !isManifest(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	iw.mu.Lock()
	defer iw.mu.Unlock()

	iw.pending[event.Name] = struct{}{}

	if iw.timer != nil {
		iw.timer.Stop()
	}
	iw.timer = time.AfterFunc(iw.debounce, iw.flush)
}

func (iw *InboxWatcher) flush() {
	iw.mu.Lock()
	pending := iw.pending
	iw.pending = make(map[string]struct{})
	iw.mu.Unlock()

	for path := range pending {
		if iw.ctx.Err() != nil {
			return
		}
		iw.process(path)
	}
}

func (iw *InboxWatcher) process(path string) {
	if _, err := os.Stat(path); err != nil {
		return // Gone before we got to it
	}

	ctx := iw.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if err := iw.submit(ctx, path); err != nil {
		iw.log.Error().Err(err).Str("manifest", path).Msg("manifest submission failed")
		iw.markProcessed(path, ".failed")
		return
	}

	iw.log.Info().Str("manifest", path).Msg("manifest submitted")
	iw.markProcessed(path, ".submitted")
}

func (iw *InboxWatcher) markProcessed(path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		iw.log.Warn().Err(err).Str("manifest", path).Msg("could not mark manifest as processed")
	}
}

func isManifest(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
