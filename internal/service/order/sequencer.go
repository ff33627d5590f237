package order

import "sync"

// sequencer serialises work per order id so that commits and the
// notifications they produce leave the process in the same order.
type sequencer struct {
	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newSequencer() *sequencer {
	return &sequencer{locks: make(map[int64]*keyLock)}
}

// Lock blocks until id is free and returns the matching unlock.
func (s *sequencer) Lock(id int64) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &keyLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, id)
			}
			s.mu.Unlock()
		})
	}
}

func (s *sequencer) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
