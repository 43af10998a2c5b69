// Package schedule runs recurring mission submissions from manifest
// files on cron schedules.
package schedule

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Entry is one recurring submission
type Entry struct {
	Name     string `toml:"name"`
	Cron     string `toml:"cron"`
	Manifest string `toml:"manifest"`
	Enabled  bool   `toml:"enabled"`
}

// File holds all schedule entries
type File struct {
	Entries []Entry `toml:"schedule"`
}

// Validate checks if the entry is usable
func (e *Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("schedule name is required")
	}
	if e.Cron == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := ParseCron(e.Cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if e.Manifest == "" {
		return fmt.Errorf("manifest path is required")
	}
	return nil
}

// LoadFile loads schedule entries from a TOML file. A missing file is
// an empty schedule, not an error.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, err
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	for i := range f.Entries {
		if err := f.Entries[i].Validate(); err != nil {
			return nil, fmt.Errorf("schedule %d: %w", i, err)
		}
	}

	return &f, nil
}

// ParseCron parses a standard five-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// Scheduler fires schedule entries when their cron expressions come due
type Scheduler struct {
	entries map[string]Entry
	parser  cron.Parser
	lastRun map[string]time.Time
	running map[string]bool
	mu      sync.RWMutex

	tick     time.Duration
	log      zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a scheduler over the given entries. Disabled
// entries are kept for listing but never fire.
func NewScheduler(entries []Entry, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		entries:  make(map[string]Entry),
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		lastRun:  make(map[string]time.Time),
		running:  make(map[string]bool),
		tick:     time.Minute,
		log:      log,
		stopChan: make(chan struct{}),
	}

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		s.entries[e.Name] = e
	}

	return s, nil
}

// Entries returns all entry names
func (s *Scheduler) Entries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Entry returns the entry for a name
func (s *Scheduler) Entry(name string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e, ok
}

// NextRun returns the next fire time for an entry
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return time.Time{}
	}

	sched, err := s.parser.Parse(e.Cron)
	if err != nil {
		return time.Time{}
	}

	return sched.Next(time.Now())
}

// ShouldRun returns true if an entry is due and not already in flight
func (s *Scheduler) ShouldRun(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok || !e.Enabled {
		return false
	}

	if s.running[name] {
		return false
	}

	sched, err := s.parser.Parse(e.Cron)
	if err != nil {
		return false
	}

	lastRun := s.lastRun[name]
	if lastRun.IsZero() {
		lastRun = time.Now().Add(-24 * time.Hour)
	}

	return time.Now().After(sched.Next(lastRun))
}

// MarkRunning marks an entry as currently in flight
func (s *Scheduler) MarkRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = true
}

// MarkComplete marks an entry as done and records the run time
func (s *Scheduler) MarkComplete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = false
	s.lastRun[name] = time.Now()
}

// SetTick overrides the poll interval
func (s *Scheduler) SetTick(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = d
}

// Start runs the scheduler loop until Stop is called. runFunc receives
// the entry to submit; failures are logged and the entry stays eligible
// for its next cron slot.
func (s *Scheduler) Start(runFunc func(Entry) error) {
	s.mu.RLock()
	tick := s.tick
	s.mu.RUnlock()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			for name := range s.entries {
				if !s.ShouldRun(name) {
					continue
				}
				e, _ := s.Entry(name)
				s.MarkRunning(name)
				go func(e Entry) {
					if err := runFunc(e); err != nil {
						s.log.Error().Err(err).Str("schedule", e.Name).Msg("scheduled submission failed")
					}
					s.MarkComplete(e.Name)
				}(e)
			}
		}
	}
}

// Stop stops the scheduler loop
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}
