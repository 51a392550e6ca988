package engine

import (
	"sync"
	"time"

	"lead-engine/internal/domain"
)

// session is the mutable state of one conversation. It is only touched while
// the owning slot's mutex is held.
type session struct {
	id        string
	messages  []domain.Message
	fields    map[domain.FieldKey]domain.ExtractedField
	history   []domain.FieldChange
	solicited *domain.FieldKey

	complete    bool
	completedAt int
	category    domain.Category

	createdAt time.Time
	updatedAt time.Time

	// Derived on every mutation.
	view domain.Snapshot
}

func newSession(id string, now time.Time) *session {
	return &session{
		id:        id,
		fields:    make(map[domain.FieldKey]domain.ExtractedField),
		createdAt: now,
		updatedAt: now,
	}
}

// slot serializes access to one session. state is nil until the first
// successful turn or restore.
type slot struct {
	mu    sync.Mutex
	state *session
}

type store struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

func newStore() *store {
	return &store{slots: make(map[string]*slot)}
}

// get returns the slot for id, creating an empty one when create is set.
func (s *store) get(id string, create bool) *slot {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if ok || !create {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok = s.slots[id]; ok {
		return sl
	}
	sl = &slot{}
	s.slots[id] = sl
	return sl
}

// live counts slots holding a session.
func (s *store) live() int {
	s.mu.RLock()
	slots := make([]*slot, 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	s.mu.RUnlock()

	n := 0
	for _, sl := range slots {
		sl.mu.Lock()
		if sl.state != nil {
			n++
		}
		sl.mu.Unlock()
	}
	return n
}
