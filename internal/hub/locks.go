package hub

import (
	"sort"
	"sync"
)

// roomLocks hands out one exclusive section per room name. Entries are
// reference counted and dropped once nobody holds or waits for them.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*roomLock)}
}

// lock acquires the sections of all given rooms in lexical order and returns
// the function releasing them.
func (l *roomLocks) lock(rooms ...string) func() {
	names := make([]string, 0, len(rooms))
	seen := make(map[string]struct{}, len(rooms))
	for _, room := range rooms {
		if _, ok := seen[room]; ok {
			continue
		}
		seen[room] = struct{}{}
		names = append(names, room)
	}
	sort.Strings(names)

	held := make([]*roomLock, 0, len(names))
	for _, name := range names {
		rl := l.acquire(name)
		rl.mu.Lock()
		held = append(held, rl)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.release(names[i])
		}
	}
}

func (l *roomLocks) acquire(name string) *roomLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl, ok := l.locks[name]
	if !ok {
		rl = &roomLock{}
		l.locks[name] = rl
	}
	rl.refs++
	return rl
}

func (l *roomLocks) release(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl, ok := l.locks[name]
	if !ok {
		return
	}
	rl.refs--
	if rl.refs == 0 {
		delete(l.locks, name)
	}
}

func (l *roomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
