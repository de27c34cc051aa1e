package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler is a callback function called when configuration
// changes on disk. Used to re-apply limiter buckets at runtime.
type ChangeHandler func(*Config) error

// Watcher monitors the configuration file for changes and triggers
// reload.
type Watcher struct {
	loader   *Loader
	config   *Config
	handlers []ChangeHandler
	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a new configuration watcher.
func NewWatcher(loader *Loader, config *Config) *Watcher {
	return &Watcher{loader: loader, config: config}
}

// AddHandler registers a handler to be called when configuration
// changes.
func (w *Watcher) AddHandler(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching the configuration file for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.watching = true
	w.mu.Unlock()

	w.loader.viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := w.loader.Load("")
		if err != nil {
			return
		}
		if err := ValidateConfig(newConfig); err != nil {
			return
		}

		w.mu.Lock()
		w.config = newConfig
		handlers := make([]ChangeHandler, len(w.handlers))
		copy(handlers, w.handlers)
		w.mu.Unlock()

		for _, handler := range handlers {
			_ = handler(newConfig)
		}
	})
	w.loader.viper.WatchConfig()
	return nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}
