package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const debounceInterval = 200 * time.Millisecond

// Watcher calls onChange after the watched file is written, created or
// renamed into place. Bursts of events within debounceInterval collapse
// into a single call.
type Watcher struct {
	fw       *fsnotify.Watcher
	path     string
	onChange func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func Watch(path string, onChange func()) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	// Watch the directory: editors and config-map mounts replace the file
	// instead of writing it in place.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(abs), err)
	}
	w := &Watcher{
		fw:       fw,
		path:     abs,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debugf("config file event: %s", event)
			if timer == nil {
				timer = time.NewTimer(debounceInterval)
			} else {
				timer.Reset(debounceInterval)
			}
			fire = timer.C
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Errorf("config watcher error: %s", err)
		case <-fire:
			fire = nil
			w.onChange()
		}
	}
}

func (w *Watcher) Close() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		w.fw.Close()
	})
}
