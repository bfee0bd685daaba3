package eventbus

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	t.Parallel()
	b := New()
	ch1, unsub1 := b.Subscribe(4)
	ch2, unsub2 := b.Subscribe(4)
	defer unsub1()
	defer unsub2()

	b.Publish(Event{Type: TypeJobFailed, Data: "boom"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != TypeJobFailed || e.Data != "boom" {
				t.Fatalf("subscriber %d got %+v", i, e)
			}
			if e.Time.IsZero() {
				t.Fatalf("subscriber %d: time not stamped", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d got nothing", i)
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	// Second publish overflows the buffer; it must return, not block.
	b.Publish(Event{Type: TypeJobStarted})
	b.Publish(Event{Type: TypeJobFinished})

	e := <-ch
	if e.Type != TypeJobStarted {
		t.Fatalf("first event = %+v", e)
	}
	select {
	case e := <-ch:
		t.Fatalf("overflow event delivered: %+v", e)
	default:
	}
}

func TestUnsubscribeClosesChannelOnce(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub() // second call is a no-op

	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after unsubscribe")
	}
	// Publishing after unsubscribe must not panic or deliver.
	b.Publish(Event{Type: TypeJobFailed})
}
