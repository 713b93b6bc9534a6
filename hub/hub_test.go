package hub

import (
	"errors"
	"sync"
	"testing"
)

type fakeMember struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (f *fakeMember) Deliver(ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("deliver fail")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeMember) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestHub_PublishReachesAllMembersIncludingPublisher(t *testing.T) {
	h := New()

	m1 := &fakeMember{}
	m2 := &fakeMember{}
	h.Join(m1)
	h.Join(m2)

	h.Publish(EventUpdateChat)

	if m1.count() != 1 || m2.count() != 1 {
		t.Fatalf("expected exactly one delivery each, got %d and %d", m1.count(), m2.count())
	}
	if m1.events[0].Type != "update_chat" {
		t.Fatalf("unexpected event type %q", m1.events[0].Type)
	}
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	h := New()

	m := &fakeMember{}
	h.Join(m)
	h.Join(m)

	if h.Len() != 1 {
		t.Fatalf("expected 1 member after double join, got %d", h.Len())
	}

	h.Publish(EventUpdateChat)
	if m.count() != 1 {
		t.Fatalf("expected a single delivery, got %d", m.count())
	}
}

func TestHub_LeaveBeforePublishReceivesNothing(t *testing.T) {
	h := New()

	stayer := &fakeMember{}
	leaver := &fakeMember{}
	h.Join(stayer)
	h.Join(leaver)

	h.Leave(leaver)
	h.Publish(EventUpdateChat)

	if leaver.count() != 0 {
		t.Fatalf("left member should receive nothing, got %d events", leaver.count())
	}
	if stayer.count() != 1 {
		t.Fatalf("remaining member should receive one event, got %d", stayer.count())
	}
}

func TestHub_JoinAfterPublishReceivesNothing(t *testing.T) {
	h := New()

	early := &fakeMember{}
	h.Join(early)
	h.Publish(EventUpdateChat)

	late := &fakeMember{}
	h.Join(late)

	if late.count() != 0 {
		t.Fatalf("late joiner should not see earlier publish, got %d events", late.count())
	}
}

func TestHub_LeaveUnknownMemberIsNoop(t *testing.T) {
	h := New()
	h.Leave(&fakeMember{})
	if h.Len() != 0 {
		t.Fatalf("expected empty hub, got %d members", h.Len())
	}
}

func TestHub_BrokenMemberIsDroppedAndOthersStillDelivered(t *testing.T) {
	h := New()

	ok := &fakeMember{}
	bad := &fakeMember{fail: true}
	h.Join(ok)
	h.Join(bad)

	h.Publish(EventUpdateChat)

	if ok.count() != 1 {
		t.Fatalf("healthy member should receive the event, got %d", ok.count())
	}
	if h.Len() != 1 {
		t.Fatalf("broken member should have been dropped, hub has %d members", h.Len())
	}

	// 第二次发布只到达健康成员
	h.Publish(EventUpdateChat)
	if ok.count() != 2 {
		t.Fatalf("expected 2 deliveries to healthy member, got %d", ok.count())
	}
	if bad.count() != 0 {
		t.Fatalf("broken member should never have received anything")
	}
}

func TestHub_ConcurrentJoinLeavePublish(t *testing.T) {
	h := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := &fakeMember{}
			h.Join(m)
			h.Publish(EventUpdateChat)
			h.Leave(m)
		}()
	}
	wg.Wait()

	if h.Len() != 0 {
		t.Fatalf("expected empty hub after all members left, got %d", h.Len())
	}
}
