package presence

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	displayName string
	expires     time.Time
}

// MemoryStore is the single-process implementation, also used as the test
// double. Same TTL semantics as the redis store.
type MemoryStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	entries    map[string]map[string]memoryEntry // room -> username -> entry
	heartbeats map[string]map[string]time.Time   // room -> username -> last beat
	now        func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:        ttl,
		entries:    make(map[string]map[string]memoryEntry),
		heartbeats: make(map[string]map[string]time.Time),
		now:        time.Now,
	}
}

// SetClock replaces the time source. Test hook, not safe after first use.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *MemoryStore) Upsert(_ context.Context, room, username, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[room]
	if !ok {
		m = make(map[string]memoryEntry)
		s.entries[room] = m
	}
	m[username] = memoryEntry{displayName: displayName, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, room, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[room]
	if !ok {
		return false, nil
	}
	_, present := m[username]
	delete(m, username)
	if hb, ok := s.heartbeats[room]; ok {
		delete(hb, username)
	}
	return present, nil
}

func (s *MemoryStore) Snapshot(_ context.Context, room string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]Entry, 0, len(s.entries[room]))
	for username, e := range s.entries[room] {
		if now.After(e.expires) {
			delete(s.entries[room], username)
			continue
		}
		out = append(out, Entry{Username: username, DisplayName: e.displayName})
	}
	return out, nil
}

func (s *MemoryStore) TouchHeartbeat(_ context.Context, room, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hb, ok := s.heartbeats[room]
	if !ok {
		hb = make(map[string]time.Time)
		s.heartbeats[room] = hb
	}
	hb[username] = s.now()
	return nil
}

func (s *MemoryStore) HeartbeatAge(_ context.Context, room, username string) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.heartbeats[room][username]
	if !ok {
		return 0, false, nil
	}
	age := s.now().Sub(last)
	if age > s.ttl {
		delete(s.heartbeats[room], username)
		return 0, false, nil
	}
	return age, true, nil
}

func (s *MemoryStore) Clear(_ context.Context, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, room)
	delete(s.heartbeats, room)
	return nil
}
