package alerts

import "sync"

// diskLocks hands out one mutex per disk id and forgets it once nobody
// holds or waits on it.
type diskLocks struct {
	mu    sync.Mutex
	locks map[string]*diskLock
}

type diskLock struct {
	mu   sync.Mutex
	refs int
}

func newDiskLocks() *diskLocks {
	return &diskLocks{locks: make(map[string]*diskLock)}
}

func (d *diskLocks) lock(id string) func() {
	d.mu.Lock()
	l, ok := d.locks[id]
	if !ok {
		l = &diskLock{}
		d.locks[id] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, id)
		}
		d.mu.Unlock()
	}
}
