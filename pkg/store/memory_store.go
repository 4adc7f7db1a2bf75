package store

import (
	"sort"
	"sync"

	"edunexus/pkg/domain"
)

// MemoryStore keeps all collections in-process. It backs tests and local
// development runs without Postgres.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	usernames map[string]string // username -> user ID
	groups    map[string]domain.Group
	groupIDs  []string
	messages  map[string][]domain.Message // group ID -> insertion order
	settings  *domain.SystemSettings
	tickets   map[string]domain.SupportTicket
	ticketIDs []string
	sessions  map[string]string // token -> user ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		usernames: make(map[string]string),
		groups:    make(map[string]domain.Group),
		messages:  make(map[string][]domain.Message),
		tickets:   make(map[string]domain.SupportTicket),
		sessions:  make(map[string]string),
	}
}

// CreateUser registers a user, enforcing username uniqueness.
func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.usernames[u.Username]; taken {
		return ErrUsernameTaken
	}
	u.Version = 1
	m.users[u.ID] = u
	m.usernames[u.Username] = u.ID
	return nil
}

// GetUserByUsername looks up a user by username.
func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[username]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsers returns all users ordered by creation time.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// SaveUser upserts a user, honoring optimistic versioning.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, exists := m.users[u.ID]
	if u.Version > 0 {
		if !exists || stored.Version != u.Version {
			return ErrVersionConflict
		}
	}
	if exists {
		if stored.Username != u.Username {
			delete(m.usernames, stored.Username)
		}
		u.Version = stored.Version + 1
	} else {
		u.Version = 1
	}
	m.users[u.ID] = u
	m.usernames[u.Username] = u.ID
	return nil
}

// DeleteUser removes a user unconditionally.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		delete(m.usernames, u.Username)
		delete(m.users, id)
	}
	return nil
}

// SaveGroup upserts a group.
func (m *MemoryStore) SaveGroup(g domain.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, exists := m.groups[g.ID]
	if g.Version > 0 && (!exists || stored.Version != g.Version) {
		return ErrVersionConflict
	}
	if exists {
		g.Version = stored.Version + 1
	} else {
		g.Version = 1
		m.groupIDs = append(m.groupIDs, g.ID)
	}
	m.groups[g.ID] = g
	return nil
}

// GetGroup retrieves a group by ID.
func (m *MemoryStore) GetGroup(id string) (domain.Group, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	return g, ok, nil
}

// ListGroups returns all groups in insertion order.
func (m *MemoryStore) ListGroups() ([]domain.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Group, 0, len(m.groupIDs))
	for _, id := range m.groupIDs {
		if g, ok := m.groups[id]; ok {
			res = append(res, g)
		}
	}
	return res, nil
}

// DeleteGroup removes a group and its message history.
func (m *MemoryStore) DeleteGroup(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups, id)
	delete(m.messages, id)
	filtered := m.groupIDs[:0]
	for _, gid := range m.groupIDs {
		if gid != id {
			filtered = append(filtered, gid)
		}
	}
	m.groupIDs = filtered
	return nil
}

// AppendMessage records a message in insertion order.
func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.GroupID] = append(m.messages[msg.GroupID], msg)
	return nil
}

// GetMessage retrieves one message of a group by message ID.
func (m *MemoryStore) GetMessage(groupID, id string) (domain.Message, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msg := range m.messages[groupID] {
		if msg.ID == id {
			return msg, true, nil
		}
	}
	return domain.Message{}, false, nil
}

// ListMessages returns a group's messages sorted stably by timestamp with
// insertion order as tie-break, bounded to the most recent limit entries.
func (m *MemoryStore) ListMessages(groupID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.messages[groupID]
	res := make([]domain.Message, len(stored))
	copy(res, stored)
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	if limit > 0 && len(res) > limit {
		res = res[len(res)-limit:]
	}
	return res, nil
}

// GetSettings returns the stored settings or the compiled-in defaults.
func (m *MemoryStore) GetSettings() (domain.SystemSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return domain.DefaultSettings(), nil
	}
	return *m.settings, nil
}

// SaveSettings upserts the singleton settings record.
func (m *MemoryStore) SaveSettings(settings domain.SystemSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if settings.Version > 0 && (m.settings == nil || m.settings.Version != settings.Version) {
		return ErrVersionConflict
	}
	if m.settings != nil {
		settings.Version = m.settings.Version + 1
	} else {
		settings.Version = 1
	}
	m.settings = &settings
	return nil
}

// CreateTicket records a new support ticket.
func (m *MemoryStore) CreateTicket(t domain.SupportTicket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Version = 1
	m.tickets[t.ID] = t
	m.ticketIDs = append(m.ticketIDs, t.ID)
	return nil
}

// GetTicket retrieves a ticket by ID.
func (m *MemoryStore) GetTicket(id string) (domain.SupportTicket, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	return t, ok, nil
}

// ListTickets returns all tickets, newest first.
func (m *MemoryStore) ListTickets() ([]domain.SupportTicket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.SupportTicket, 0, len(m.ticketIDs))
	for i := len(m.ticketIDs) - 1; i >= 0; i-- {
		if t, ok := m.tickets[m.ticketIDs[i]]; ok {
			res = append(res, t)
		}
	}
	return res, nil
}

// SaveTicket upserts a ticket.
func (m *MemoryStore) SaveTicket(t domain.SupportTicket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, exists := m.tickets[t.ID]
	if t.Version > 0 && (!exists || stored.Version != t.Version) {
		return ErrVersionConflict
	}
	if exists {
		t.Version = stored.Version + 1
	} else {
		t.Version = 1
		m.ticketIDs = append(m.ticketIDs, t.ID)
	}
	m.tickets[t.ID] = t
	return nil
}

// NewSession creates an in-memory session token for a user.
func (m *MemoryStore) NewSession(userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := NewID()
	m.sessions[token] = userID
	return token, nil
}

// GetUserIDByToken resolves a session token.
func (m *MemoryStore) GetUserIDByToken(token string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.sessions[token]
	return uid, ok, nil
}

// DeleteSession removes a session token.
func (m *MemoryStore) DeleteSession(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}
