package arclight

import "sync"

// addressLocks serializes post index updates per author address.
type addressLocks struct {
	mu    sync.Mutex
	locks map[Address]*addressLock
}

type addressLock struct {
	mu   sync.Mutex
	refs int
}

func newAddressLocks() *addressLocks {
	return &addressLocks{locks: make(map[Address]*addressLock)}
}

// lock blocks until the caller owns address and returns the release func.
func (l *addressLocks) lock(address Address) func() {
	l.mu.Lock()
	al, ok := l.locks[address]
	if !ok {
		al = &addressLock{}
		l.locks[address] = al
	}
	al.refs++
	l.mu.Unlock()

	al.mu.Lock()
	return func() {
		al.mu.Unlock()
		l.mu.Lock()
		al.refs--
		if al.refs == 0 {
			delete(l.locks, address)
		}
		l.mu.Unlock()
	}
}
