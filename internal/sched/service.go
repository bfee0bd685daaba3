package sched

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"ridewatch/internal/eventbus"
	logx "ridewatch/pkg/logx"
)

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	parser cron.Parser
	loc    *time.Location
	c      *cron.Cron

	defs  map[string]*jobDef
	order []string

	q        chan queuedJob
	stopCh   chan struct{}
	stopDone chan struct{}
	wg       *sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem

	dropped uint64
}

type jobDef struct {
	name    string
	raw     string
	spec    ParsedSpec
	timeout time.Duration
	run     JobFunc
	entryID cron.EntryID
	state   *runState
}

type queuedJob struct {
	name       string
	timeout    time.Duration
	run        JobFunc
	state      *runState
	enqueuedAt time.Time
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg.withDefaults(),
		log: log,
		bus: bus,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:   map[string]*jobDef{},
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Register upserts a job by name. Registering over an existing name replaces
// its schedule, which keeps hot-reloads idempotent. Safe to call before Start;
// definitions registered while stopped are picked up when the scheduler starts.
func (s *Service) Register(name, schedule string, timeout time.Duration, run JobFunc) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("job name required")
	}
	if run == nil {
		return fmt.Errorf("job %s: run func required", name)
	}
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}

	if prev, ok := s.defs[name]; ok {
		if s.c != nil && prev.entryID != 0 {
			s.c.Remove(prev.entryID)
		}
	} else {
		s.order = append(s.order, name)
	}
	d := &jobDef{
		name:    name,
		raw:     strings.TrimSpace(schedule),
		spec:    ps,
		timeout: timeout,
		run:     run,
		state:   &runState{},
	}
	s.defs[name] = d

	if s.c != nil {
		if err := s.addEntryLocked(d); err != nil {
			return fmt.Errorf("job %s: %w", name, err)
		}
		s.log.Debug("job registered", logx.String("job", name), logx.String("spec", d.spec.CronSpec()), logx.Duration("timeout", timeout))
	}
	return nil
}

// Remove unschedules and forgets the named job. Returns true if it existed.
func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.log.Debug("job removed", logx.String("job", name))
	return true
}

// Apply swaps in a new config. A timezone change restarts the cron trigger; a
// worker or queue size change restarts the pool. Both keep registrations.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	running := s.stopCh != nil && s.stopDone == nil
	tzChanged := strings.TrimSpace(prev.Timezone) != strings.TrimSpace(cfg.Timezone)
	poolChanged := prev.Workers != cfg.Workers || prev.QueueSize != cfg.QueueSize
	s.mu.Unlock()

	if !running {
		return
	}
	if !cfg.Enabled || poolChanged || tzChanged {
		s.Stop(ctx)
		s.Start(ctx)
	}
}

// Start is idempotent. It builds the cron trigger in the configured timezone,
// registers all known jobs and spins up the worker pool.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	cfg := s.cfg
	if !cfg.Enabled {
		s.mu.Unlock()
		return
	}
	if s.stopCh != nil {
		done := s.stopDone
		s.mu.Unlock()
		if done == nil {
			return
		}
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
		if s.stopCh != nil {
			s.mu.Unlock()
			return
		}
	}

	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	for _, name := range s.order {
		d := s.defs[name]
		if err := s.addEntryLocked(d); err != nil {
			s.log.Error("job schedule rejected", logx.String("job", d.name), logx.String("spec", d.spec.CronSpec()), logx.Err(err))
		}
	}

	s.q = make(chan queuedJob, cfg.QueueSize)
	s.stopCh = make(chan struct{})
	s.stopDone = nil
	s.wg = &sync.WaitGroup{}
	queue := s.q
	stopCh := s.stopCh
	wg := s.wg
	for i := 0; i < cfg.Workers; i++ {
		idx := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(stopCh, queue, idx)
		}()
	}

	s.c.Start()
	s.mu.Unlock()

	s.log.Info("scheduler started",
		logx.String("tz", loc.String()),
		logx.Int("jobs", len(s.order)),
		logx.Int("workers", cfg.Workers),
		logx.Int("queue", cap(queue)))
}

// Stop halts triggering, waits for in-flight runs to finish (bounded by ctx)
// and tears down the pool. Registrations survive for the next Start.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	close(s.stopCh)
	c := s.c
	s.c = nil
	wg := s.wg
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}

	go func() {
		if wg != nil {
			wg.Wait()
		}
		s.mu.Lock()
		s.q = nil
		s.stopCh = nil
		s.stopDone = nil
		s.wg = nil
		for _, d := range s.defs {
			d.entryID = 0
		}
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out", logx.Err(ctx.Err()))
	}
}

// RunNow executes the named job synchronously, bypassing the queue. It still
// honors overlap gating and the job timeout. Used by the -once CLI mode and
// by operators poking a job out of band.
func (s *Service) RunNow(ctx context.Context, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	d, ok := s.defs[strings.TrimSpace(name)]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !d.state.tryAcquire() {
		return ErrOverlapSkip
	}
	defer d.state.release()
	return s.execute(ctx, d.name, d.timeout, d.run, 0, nil)
}

// Names returns the registered job names in registration order.
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg := s.cfg
	q := s.q
	running := s.stopCh != nil && s.stopDone == nil
	jobs := make([]JobInfo, 0, len(s.order))
	for _, name := range s.order {
		d := s.defs[name]
		info := JobInfo{Name: d.name, Schedule: d.raw, Timeout: d.timeout}
		if s.c != nil && d.entryID != 0 {
			info.Next = s.c.Entry(d.entryID).Next
		}
		jobs = append(jobs, info)
	}
	s.mu.Unlock()

	ql, qc := 0, 0
	if q != nil {
		ql, qc = len(q), cap(q)
	}

	s.hmu.Lock()
	h := make([]HistoryItem, len(s.history))
	copy(h, s.history)
	s.hmu.Unlock()

	return Snapshot{
		Enabled:  cfg.Enabled,
		Running:  running,
		Workers:  cfg.Workers,
		QueueLen: ql,
		QueueCap: qc,
		Jobs:     jobs,
		Dropped:  atomic.LoadUint64(&s.dropped),
		History:  h,
	}
}

// addEntryLocked registers a def with the running cron. Call with s.mu held
// and s.c non-nil.
func (s *Service) addEntryLocked(d *jobDef) error {
	trigger := cron.FuncJob(func() { s.trigger(d) })
	eid, err := s.c.AddJob(d.spec.CronSpec(), trigger)
	if err != nil {
		return err
	}
	d.entryID = eid
	return nil
}

// trigger enqueues one run without blocking the cron goroutine. Overlap is
// gated at enqueue time so a queued run counts as in-flight.
func (s *Service) trigger(d *jobDef) {
	s.mu.Lock()
	q := s.q
	stopping := s.stopDone != nil
	s.mu.Unlock()
	if q == nil || stopping {
		return
	}

	if !d.state.tryAcquire() {
		s.log.Debug("job skipped: previous run in flight", logx.String("job", d.name))
		return
	}
	qj := queuedJob{name: d.name, timeout: d.timeout, run: d.run, state: d.state, enqueuedAt: time.Now()}
	select {
	case q <- qj:
	default:
		d.state.release()
		atomic.AddUint64(&s.dropped, 1)
		s.log.Warn("job dropped: queue full",
			logx.String("job", d.name),
			logx.Int("queue_len", len(q)),
			logx.Int("queue_cap", cap(q)),
			logx.Uint64("dropped", atomic.LoadUint64(&s.dropped)))
	}
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) recordHistory(item HistoryItem) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}
