package conversation

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Janitor periodically sweeps idle conversations out of a Store.
type Janitor struct {
	store    *Store
	ttl      time.Duration
	schedule string
	// OnSweep, if set, is called after each sweep with the number of
	// removed and remaining sessions.
	OnSweep func(removed, remaining int)

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewJanitor(store *Store, ttl time.Duration, schedule string) *Janitor {
	return &Janitor{
		store:    store,
		ttl:      ttl,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start schedules the sweep. An empty schedule or non-positive ttl
// disables it.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	if j.schedule == "" || j.ttl <= 0 {
		log.Info("conversation sweep disabled")
		return nil
	}
	if _, err := cron.ParseStandard(j.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", j.schedule, err)
	}
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	j.cron.Start()
	j.running = true
	log.Infof("conversation sweep scheduled %q, ttl %s", j.schedule, j.ttl)
	return nil
}

func (j *Janitor) run() {
	removed := j.store.Sweep(j.ttl)
	remaining := j.store.Len()
	if removed > 0 {
		log.Debugf("swept %d idle conversations, %d remaining", removed, remaining)
	}
	if j.OnSweep != nil {
		j.OnSweep(removed, remaining)
	}
}

// Running reports whether sweeps are scheduled.
func (j *Janitor) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// Stop stops scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	<-j.cron.Stop().Done()
	j.running = false
}
