package config

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	mu        sync.RWMutex
	current   *Config
	callbacks []func()
	watcher   *Watcher
)

// Init loads the process configuration and, when it came from a file,
// starts watching that file for changes.
func Init() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	set(cfg)
	if cfg.File != "" {
		w, err := Watch(cfg.File, reload)
		if err != nil {
			log.Warnf("config hot reload disabled: %s", err)
			return nil
		}
		mu.Lock()
		watcher = w
		mu.Unlock()
	}
	return nil
}

// Close stops the config file watcher, if any.
func Close() {
	mu.Lock()
	w := watcher
	watcher = nil
	mu.Unlock()
	if w != nil {
		w.Close()
	}
}

func reload() {
	cfg, err := Load()
	if err != nil {
		log.Errorf("config reload failed, keeping previous config: %s", err)
		return
	}
	set(cfg)
	log.Infof("config reloaded from %s", cfg.File)
}

func set(cfg *Config) {
	mu.Lock()
	current = cfg
	cbs := append([]func(){}, callbacks...)
	mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// ReadConfig returns the current snapshot. It must not be modified.
func ReadConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return Default()
	}
	return current
}

func GetLogLevel() log.Level {
	return ReadConfig().Level()
}

func GetIsDebug() bool {
	return ReadConfig().Debug
}

func AddConfigChangeCallback(cb func()) {
	mu.Lock()
	defer mu.Unlock()
	callbacks = append(callbacks, cb)
}
