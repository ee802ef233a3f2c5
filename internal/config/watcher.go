package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig controls how a ConfigWatcher reacts to changes on disk.
type WatcherConfig struct {
	DebounceDelay        time.Duration
	OnReload             func(config *Config, result *ValidationResult)
	OnError              func(err error)
	ValidateBeforeReload bool
}

// DefaultWatcherConfig returns a watcher config with a 500ms debounce and
// validation enabled, doing nothing on either callback.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		DebounceDelay:        500 * time.Millisecond,
		ValidateBeforeReload: true,
		OnReload:             func(*Config, *ValidationResult) {},
		OnError:              func(error) {},
	}
}

// relevantOps is the set of fsnotify operations that can indicate a config
// file was rewritten. Watching the directory rather than the file itself
// is required because editors commonly save via rename-over or
// delete-then-create rather than an in-place write.
const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// ConfigWatcher reloads a config file whenever it changes on disk, after a
// debounce window, and hands the parsed result to the caller's callbacks.
type ConfigWatcher struct {
	path string
	opts WatcherConfig
	fsw  *fsnotify.Watcher

	mu      sync.RWMutex
	current *Config

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	debounceMu sync.Mutex
	debounce   *time.Timer
}

// NewConfigWatcher loads and validates configPath once, then starts
// watching its parent directory for changes. The initial load must
// succeed and pass validation or NewConfigWatcher fails outright — a
// watcher over a config it could never load has nothing useful to do.
func NewConfigWatcher(configPath string, opts WatcherConfig) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	initial, result, err := ValidateAndLoad(absPath)
	if err != nil {
		return nil, fmt.Errorf("loading initial config: %w", err)
	}
	if !result.Valid {
		return nil, errors.New("initial config failed validation")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching config directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cw := &ConfigWatcher{
		path:    absPath,
		opts:    opts,
		fsw:     fsw,
		current: initial,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go cw.run()
	return cw, nil
}

// GetConfig returns the most recently loaded configuration.
func (cw *ConfigWatcher) GetConfig() *Config {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.current
}

func (cw *ConfigWatcher) run() {
	defer close(cw.done)

	for {
		select {
		case <-cw.ctx.Done():
			return

		case ev, ok := <-cw.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != cw.path {
				continue
			}
			if ev.Op&relevantOps != 0 {
				cw.scheduleReload()
			}

		case err, ok := <-cw.fsw.Errors:
			if !ok {
				return
			}
			cw.opts.OnError(fmt.Errorf("config watcher: %w", err))
		}
	}
}

// scheduleReload (re)arms the debounce timer so a burst of filesystem
// events — common with editors that write a temp file then rename it into
// place — collapses into a single reload.
func (cw *ConfigWatcher) scheduleReload() {
	cw.debounceMu.Lock()
	defer cw.debounceMu.Unlock()

	if cw.debounce != nil {
		cw.debounce.Stop()
	}
	cw.debounce = time.AfterFunc(cw.opts.DebounceDelay, cw.reload)
}

func (cw *ConfigWatcher) reload() {
	next, result, err := ValidateAndLoad(cw.path)
	if err != nil {
		cw.opts.OnError(fmt.Errorf("reloading config: %w", err))
		return
	}
	if cw.opts.ValidateBeforeReload && !result.Valid {
		cw.opts.OnError(fmt.Errorf("config validation failed: %w", joinValidationErrors(result)))
		return
	}

	cw.mu.Lock()
	cw.current = next
	cw.mu.Unlock()

	cw.opts.OnReload(next, result)
}

func joinValidationErrors(result *ValidationResult) error {
	var err error
	for _, e := range result.Errors {
		if err == nil {
			err = e
			continue
		}
		err = fmt.Errorf("%w; %s", err, e.Error())
	}
	return err
}

// Stop halts the watcher and blocks until its goroutine has exited.
func (cw *ConfigWatcher) Stop() error {
	cw.cancel()

	cw.debounceMu.Lock()
	if cw.debounce != nil {
		cw.debounce.Stop()
	}
	cw.debounceMu.Unlock()

	err := cw.fsw.Close()
	<-cw.done
	return err
}
