package config

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDelay = 200 * time.Millisecond

// Watcher reloads the configuration file when it changes and notifies the
// registered callbacks with the new value.
type Watcher struct {
	path      string
	config    *Config
	callbacks []func(*Config)
	mu        sync.RWMutex
	logger    *zap.Logger
	delay     time.Duration
}

// NewWatcher watches the file initial was loaded from.
func NewWatcher(initial *Config, logger *zap.Logger) *Watcher {
	return &Watcher{
		path:   initial.Path,
		config: initial,
		logger: logger,
		delay:  debounceDelay,
	}
}

// OnChange registers a callback to be called when configuration changes.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, callback)
	w.mu.Unlock()
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Run blocks until ctx is done. Without a configuration file it only waits.
func (w *Watcher) Run(ctx context.Context) error {
	if w.path == "" {
		w.logger.Info("Configuration hot reloading disabled, no config file")
		<-ctx.Done()
		return nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsWatcher.Close()

	// Editors replace files by rename, so the directory is watched.
	dir := filepath.Dir(w.path)
	if err := fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Info("Configuration hot reloading enabled", zap.String("file", w.path))

	target := filepath.Clean(w.path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("Configuration file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()),
			)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.delay, w.reload)

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-ctx.Done():
			w.logger.Info("Stopping configuration watcher")
			return nil
		}
	}
}

func (w *Watcher) reload() {
	next, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("Invalid configuration after reload, keeping the previous one", zap.Error(err))
		return
	}

	w.mu.Lock()
	prev := w.config
	if reflect.DeepEqual(prev, next) {
		w.mu.Unlock()
		w.logger.Debug("Configuration unchanged after reload")
		return
	}
	w.config = next
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	if prev.LogLevel != next.LogLevel {
		w.logger.Info("Configuration changes detected",
			zap.String("log_level", prev.LogLevel+" -> "+next.LogLevel),
		)
	}

	for i, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("Callback panicked", zap.Int("callback_index", i), zap.Any("panic", r))
				}
			}()
			cb(next)
		}()
	}
}
