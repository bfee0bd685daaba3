package sched

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"time"

	"ridewatch/internal/eventbus"
	logx "ridewatch/pkg/logx"
)

const (
	retryBase     = 500 * time.Millisecond
	retryMaxDelay = 15 * time.Second
	retryJitter   = 0.2
)

func (s *Service) worker(stopCh <-chan struct{}, queue chan queuedJob, idx int) {
	// Per-worker RNG: avoids global lock contention when several jobs retry
	// concurrently.
	seed := time.Now().UnixNano() ^ (int64(idx) << 32)
	rng := rand.New(rand.NewSource(seed))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopCh
		cancel()
	}()

	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-stopCh:
			return
		default:
		}

		select {
		case <-stopCh:
			return
		case qj, ok := <-queue:
			if !ok {
				return
			}
			delay := time.Since(qj.enqueuedAt)
			if delay < 0 {
				delay = 0
			}
			_ = s.execute(ctx, qj.name, qj.timeout, qj.run, delay, rng)
			qj.state.release()
		}
	}
}

// execute runs one job through its retry budget and records the outcome.
func (s *Service) execute(ctx context.Context, name string, timeout time.Duration, run JobFunc, queueDelay time.Duration, rng *rand.Rand) error {
	start := time.Now()
	s.mu.Lock()
	retryMax := s.cfg.RetryMax
	s.mu.Unlock()

	s.log.Debug("job started", logx.String("job", name), logx.Duration("queue_delay", queueDelay))
	s.publish(eventbus.TypeJobStarted, JobEvent{Name: name, Started: start})

	var err error
	attempts := 0
	maxAttempts := 1 + retryMax
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		err = s.runOnce(ctx, name, timeout, run)
		if err == nil || attempt >= maxAttempts || ctx.Err() != nil {
			break
		}

		delay := backoffDelay(attempt, rng)
		s.log.Debug("job retry scheduled",
			logx.String("job", name),
			logx.Int("attempt", attempt+1),
			logx.Duration("delay", delay),
			logx.Err(err))
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			err = ctx.Err()
		case <-tmr.C:
			continue
		}
		break
	}

	dur := time.Since(start)
	item := HistoryItem{Name: name, Started: start, QueueDelay: queueDelay, Duration: dur, Attempts: attempts}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("job failed",
			logx.String("job", name),
			logx.Err(err),
			logx.Duration("dur", dur),
			logx.Int("attempts", attempts))
		s.publish(eventbus.TypeJobFailed, JobEvent{Name: name, Started: start, Duration: dur, Attempts: attempts, Error: item.Error})
	} else {
		if dur >= 750*time.Millisecond {
			s.log.Info("job completed", logx.String("job", name), logx.Duration("dur", dur), logx.Int("attempts", attempts))
		} else {
			s.log.Debug("job completed", logx.String("job", name), logx.Duration("dur", dur), logx.Int("attempts", attempts))
		}
		s.publish(eventbus.TypeJobFinished, JobEvent{Name: name, Started: start, Duration: dur, Attempts: attempts})
	}
	s.recordHistory(item)
	return err
}

// runOnce runs the job once under its timeout. Panics are converted to errors
// so one bad job cannot kill a worker.
func (s *Service) runOnce(ctx context.Context, name string, timeout time.Duration, run JobFunc) (err error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("job panicked", logx.String("job", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	return run(runCtx)
}

func (s *Service) publish(typ string, ev JobEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
}

func backoffDelay(retry int, rng *rand.Rand) time.Duration {
	d := retryBase
	for i := 1; i < retry; i++ {
		d *= 2
		if d > retryMaxDelay {
			d = retryMaxDelay
			break
		}
	}
	if rng != nil {
		r := (rng.Float64()*2 - 1) * retryJitter
		d = time.Duration(float64(d) * (1 + r))
		if d < 0 {
			d = 0
		}
	}
	if d > retryMaxDelay {
		d = retryMaxDelay
	}
	return d
}
