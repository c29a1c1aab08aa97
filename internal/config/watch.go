package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"tradewatch/internal/logger"
)

// ChangeListener receives every configuration that loaded and validated after a
// file change.
type ChangeListener func(*Config)

// Watcher reloads the config when the root file changes. Broken edits are logged
// and ignored so the running daemon keeps its last good configuration.
type Watcher struct {
	path string
	v    *viper.Viper

	mu       sync.Mutex
	listener ChangeListener
	done     bool
}

func NewWatcher(path string, listener ChangeListener) *Watcher {
	return &Watcher{path: path, listener: listener}
}

// Run starts watching and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	v := viper.New()
	v.SetConfigFile(w.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config %s: %w", w.path, err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		w.handle(evt)
	})
	v.WatchConfig()
	w.v = v
	logger.Infof("config watcher started: %s", w.path)

	<-ctx.Done()
	w.mu.Lock()
	w.done = true
	w.mu.Unlock()
	return nil
}

func (w *Watcher) handle(evt fsnotify.Event) {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	w.reload(evt.Name)
}

func (w *Watcher) reload(trigger string) {
	cfg, err := Load(w.path)
	if err != nil {
		logger.Errorf("config reload failed (%s), keeping previous config: %v", trigger, err)
		return
	}
	w.mu.Lock()
	listener := w.listener
	w.mu.Unlock()
	logger.Infof("config reloaded (%s)", trigger)
	if listener == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("config listener panic: %v", r)
		}
	}()
	listener(cfg)
}
