package channels

import "sync"

// Store serialises dispatches so each reduction runs to completion before any
// reader observes the result. Subscribers see states in commit order.
type Store struct {
	// deliver is held across a dispatch and its notifications.
	deliver sync.Mutex

	mu    sync.RWMutex
	state State
	subs  map[int]func(State)
	next  int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{subs: map[int]func(State){}}
}

// Dispatch reduces a into the current state. On error the state is unchanged.
// Subscribers run on the dispatching goroutine and may read the store but
// must not dispatch.
func (s *Store) Dispatch(a Action) error {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	next, err := Reduce(s.state, a)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next.Clone())
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Len is the current channel count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Len()
}

// Subscribe registers fn to receive the state after every successful
// dispatch. The returned func unregisters it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
