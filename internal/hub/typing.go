package hub

import (
	"sync"
	"time"
)

const DefaultTypingTimeout = 3000 * time.Millisecond

// Timer is a scheduled callback that can be canceled.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type typingLatch struct {
	username string
	deadline time.Time
	timer    Timer
	gen      uint64
}

// typingState holds at most one latch per room. A new typing signal replaces
// the latch and cancels its timer; every latch carries a generation so a
// timer that already fired cannot clear its successor.
type typingState struct {
	mu        sync.Mutex
	latches   map[string]*typingLatch
	afterFunc AfterFunc
	timeout   time.Duration
	now       func() time.Time
	gen       uint64
}

func newTypingState(afterFunc AfterFunc, timeout time.Duration, now func() time.Time) *typingState {
	return &typingState{
		latches:   make(map[string]*typingLatch),
		afterFunc: afterFunc,
		timeout:   timeout,
		now:       now,
	}
}

// start latches username as the typist of room. onExpire runs with the
// latch generation when the timeout elapses.
func (t *typingState) start(room, username string, onExpire func(gen uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.latches[room]; ok {
		prev.timer.Stop()
	}

	t.gen++
	gen := t.gen
	t.latches[room] = &typingLatch{
		username: username,
		deadline: t.now().Add(t.timeout),
		timer:    t.afterFunc(t.timeout, func() { onExpire(gen) }),
		gen:      gen,
	}
}

// stop clears the latch of room and reports whether one was set.
func (t *typingState) stop(room string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	latch, ok := t.latches[room]
	if !ok {
		return false
	}
	latch.timer.Stop()
	delete(t.latches, room)
	return true
}

// expire clears the latch of room only if it is still generation gen.
func (t *typingState) expire(room string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	latch, ok := t.latches[room]
	if !ok || latch.gen != gen {
		return false
	}
	delete(t.latches, room)
	return true
}

func (t *typingState) current(room string) (username string, deadline time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	latch, ok := t.latches[room]
	if !ok {
		return "", time.Time{}, false
	}
	return latch.username, latch.deadline, true
}
