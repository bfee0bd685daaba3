package sched

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Config controls job triggering and execution.
type Config struct {
	Enabled   bool
	Workers   int
	QueueSize int

	// DefaultTimeout is used when a job is registered with timeout 0.
	DefaultTimeout time.Duration

	HistorySize int
	RetryMax    int

	// Timezone is the IANA zone cron specs are evaluated in. Empty means Local.
	Timezone string
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 10 * time.Minute
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	return c
}

// JobFunc is the unit of work a schedule triggers.
type JobFunc func(ctx context.Context) error

var (
	ErrDisabled    = errors.New("sched: disabled")
	ErrStopped     = errors.New("sched: not running")
	ErrQueueFull   = errors.New("sched: queue full")
	ErrOverlapSkip = errors.New("sched: previous run still in flight")
	ErrUnknownJob  = errors.New("sched: unknown job")
)

// runState gates overlap: a job counts as in-flight from enqueue until its run
// finishes, so a schedule firing faster than execution cannot blow up the queue.
type runState struct {
	mu       sync.Mutex
	inflight bool
}

func (s *runState) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight {
		return false
	}
	s.inflight = true
	return true
}

func (s *runState) release() {
	s.mu.Lock()
	s.inflight = false
	s.mu.Unlock()
}

// HistoryItem is one completed (or failed) run, kept in a bounded ring for
// diagnostics.
type HistoryItem struct {
	Name       string
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Attempts   int
	Error      string
}

// JobEvent is the payload published on the event bus for job lifecycle events.
type JobEvent struct {
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
}

// Snapshot is a lightweight view of the scheduler for diagnostics.
type Snapshot struct {
	Enabled  bool
	Running  bool
	Workers  int
	QueueLen int
	QueueCap int
	Jobs     []JobInfo
	Dropped  uint64
	History  []HistoryItem
}

// JobInfo describes one registered job.
type JobInfo struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Next     time.Time
}
