package store

import (
	"context"
	"sort"
	"sync"

	"github.com/haven-app/haven/internal/profile"
	"github.com/haven-app/haven/internal/recovery"
)

// MemoryStore implements Store with in-memory maps. Intended for tests
// and for hosts that opt out of persistence entirely.
type MemoryStore struct {
	mu         sync.RWMutex
	hasProfile bool
	profile    profile.Profile
	snapshots  map[string]recovery.WeeklySnapshot
}

func NewMemory() *MemoryStore {
	return &MemoryStore{snapshots: map[string]recovery.WeeklySnapshot{}}
}

func (s *MemoryStore) SaveProfile(_ context.Context, p profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p.Clone()
	s.hasProfile = true
	return nil
}

func (s *MemoryStore) LoadProfile(_ context.Context) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasProfile {
		return profile.Profile{}, ErrNoProfile
	}
	return s.profile.Clone(), nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap recovery.WeeklySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.Week] = snap
	return nil
}

func (s *MemoryStore) Snapshots(_ context.Context) ([]recovery.WeeklySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]recovery.WeeklySnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week < out[j].Week })
	return out, nil
}

func (s *MemoryStore) LastWeek(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last string
	for week := range s.snapshots {
		if week > last {
			last = week
		}
	}
	return last, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
