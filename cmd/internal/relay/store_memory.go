package relay

import "sync"

// MemoryStore is an in-process Store used for tests and embedded
// consumers. Several clients sharing one MemoryStore behave like several
// tabs sharing one origin's storage.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	subs   map[int]chan Change
	nextID int
}

// NewMemoryStore creates an empty storage area.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]string),
		subs: make(map[int]chan Change),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set implements Store.
func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.broadcast(Change{Key: key, Value: value})
}

// Del implements Store. Deleting an absent key notifies nobody.
func (s *MemoryStore) Del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	s.broadcast(Change{Key: key, Deleted: true})
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe() (<-chan Change, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Change, 16)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// broadcast runs with s.mu held. Slow subscribers drop notifications
// rather than block mutations.
func (s *MemoryStore) broadcast(c Change) {
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
