// Package eventbus carries job lifecycle notifications between the scheduler
// and its observers (the ops alerter, diagnostics, tests) without coupling
// them. Delivery is best effort: publishing never blocks, and a subscriber
// that stops draining its channel loses events rather than stalling a job
// worker.
package eventbus

import (
	"sync"
	"time"
)

// Event types the scheduler publishes. Data is a sched.JobEvent for all
// three.
const (
	TypeJobStarted  = "job.started"
	TypeJobFinished = "job.finished"
	TypeJobFailed   = "job.failed"
)

type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

func New() Bus {
	return &fanout{subs: make(map[int]chan Event)}
}

// fanout delivers every event to every subscriber channel that has room.
// Publish sends under the read lock and unsubscribe closes under the write
// lock, so a channel can never be closed mid-send.
type fanout struct {
	mu   sync.RWMutex
	next int
	subs map[int]chan Event
}

func (f *fanout) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- e:
		default:
			// Full buffer: the subscriber is behind, drop for it only.
		}
	}
}

func (f *fanout) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	unsubscribe := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; !ok {
			return
		}
		delete(f.subs, id)
		close(ch)
	}
	return ch, unsubscribe
}
