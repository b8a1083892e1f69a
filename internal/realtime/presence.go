package realtime

import (
	"sort"
	"sync"
)

// PresenceRegistry tracks which users have an open connection. A user maps to
// the connection that joined last.
type PresenceRegistry interface {
	MarkOnline(userID int64, connID string)
	// MarkOffline removes the user bound to connID, if any.
	MarkOffline(connID string) (int64, bool)
	IsOnline(userID int64) bool
	OnlineUsers() []int64
}

type memoryPresence struct {
	mu    sync.RWMutex
	users map[int64]string
}

func NewPresenceRegistry() PresenceRegistry {
	return &memoryPresence{users: make(map[int64]string)}
}

func (p *memoryPresence) MarkOnline(userID int64, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = connID
}

func (p *memoryPresence) MarkOffline(connID string) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, id := range p.users {
		if id == connID {
			delete(p.users, userID)
			return userID, true
		}
	}
	return 0, false
}

func (p *memoryPresence) IsOnline(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.users[userID]
	return ok
}

func (p *memoryPresence) OnlineUsers() []int64 {
	p.mu.RLock()
	ids := make([]int64, 0, len(p.users))
	for userID := range p.users {
		ids = append(ids, userID)
	}
	p.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
