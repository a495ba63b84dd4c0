package session

import "sync"

// MemoryStore keeps conversation state in process memory. State does not
// survive a restart; active dialogues simply start over.
type MemoryStore struct {
	mu      sync.Mutex
	records map[Key]Record
	version uint64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]Record)}
}

func (s *MemoryStore) Get(key Key) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

func (s *MemoryStore) Put(key Key, value any) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.records[key] = Record{Value: value, Version: s.version}
	return s.version
}

func (s *MemoryStore) CompareAndSwap(key Key, value any, version uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[key]
	if !ok || cur.Version != version {
		return 0, ErrConflict
	}
	s.version++
	s.records[key] = Record{Value: value, Version: s.version}
	return s.version, nil
}

func (s *MemoryStore) Clear(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}
