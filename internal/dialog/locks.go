package dialog

import "sync"

// sessionLocks выдает мьютекс на каждую сессию. Записи удаляются, когда их никто не держит.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[int64]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[int64]*sessionLock)}
}

func (l *sessionLocks) lock(id int64) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &sessionLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
