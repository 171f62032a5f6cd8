package coordinator

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mwhitfield/loom/internal/logging"
)

// WatchRules reloads the scorer's rules whenever the file at path changes.
// The initial load happens before the watcher starts, so a broken file fails
// fast instead of silently running with defaults. Returns a stop function
// that releases the watcher.
func (s *KeywordScorer) WatchRules(path string, logger *logging.DebugLogger) (func(), error) {
	if err := s.LoadRulesFile(path); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create rules watcher: %w", err)
	}

	// Watch the directory, not the file: editors that write via rename
	// would otherwise drop the watch after the first save.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := s.LoadRulesFile(path); err != nil {
					// Keep the previous rules on a bad reload.
					logger.Log("scoring rules reload failed: %v", err)
					continue
				}
				logger.Log("scoring rules reloaded from %s", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Log("rules watcher error: %v", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
