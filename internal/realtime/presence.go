package realtime

import (
	"sort"
	"sync"
)

// User is one entry in the presence snapshot sent to clients.
type User struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
}

type presenceEntry struct {
	handle      string
	displayName string
}

// PresenceRegistry tracks which identities currently hold an open
// connection. At most one entry exists per identity; reconnecting replaces
// the previous connection handle. The table is process-local by design: in a
// multi-node deployment it must move to a shared store.
type PresenceRegistry struct {
	mu      sync.RWMutex
	entries map[string]presenceEntry
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{entries: make(map[string]presenceEntry)}
}

// Register records identity as online under the given connection handle,
// replacing any previous handle for the same identity.
func (p *PresenceRegistry) Register(identity, handle, displayName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[identity] = presenceEntry{handle: handle, displayName: displayName}
}

// Unregister removes the entry owning the given handle and reports whether
// anything was removed. A stale handle, one already replaced by a fresher
// connection for the same identity, is a no-op: this is what stops an old
// connection's teardown from evicting a reconnected user.
func (p *PresenceRegistry) Unregister(handle string) (identity string, removed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, e := range p.entries {
		if e.handle == handle {
			delete(p.entries, id)
			return id, true
		}
	}
	return "", false
}

// Online reports whether identity currently holds a connection.
func (p *PresenceRegistry) Online(identity string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[identity]
	return ok
}

// Snapshot returns all online users sorted by identity for stable output.
func (p *PresenceRegistry) Snapshot() []User {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := make([]User, 0, len(p.entries))
	for id, e := range p.entries {
		users = append(users, User{Identity: id, DisplayName: e.displayName})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Identity < users[j].Identity })
	return users
}

// Count returns the number of online identities.
func (p *PresenceRegistry) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
