package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const DefaultMaxHistory = 2

// Exchange is one answered query.
type Exchange struct {
	Query  string
	Answer string
}

type conversation struct {
	mu        sync.Mutex
	exchanges []Exchange
}

// Manager keeps a bounded, in-memory exchange window per session. History
// of one session is mutated under that session's lock; different sessions
// never contend beyond the map lookup.
type Manager struct {
	maxHistory int

	mu       sync.RWMutex
	sessions map[string]*conversation
}

func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Manager{
		maxHistory: maxHistory,
		sessions:   make(map[string]*conversation),
	}
}

func (m *Manager) MaxHistory() int { return m.maxHistory }

// CreateSession registers a new empty session and returns its id.
func (m *Manager) CreateSession() string {
	id := uuid.NewString()
	m.conversation(id, true)
	return id
}

func (m *Manager) conversation(id string, create bool) *conversation {
	m.mu.RLock()
	c, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok || !create {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.sessions[id]; ok {
		return c
	}
	c = &conversation{}
	m.sessions[id] = c
	return c
}

// Exchanges returns a copy of the retained window, oldest first.
func (m *Manager) Exchanges(id string) []Exchange {
	c := m.conversation(id, false)
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Exchange, len(c.exchanges))
	copy(out, c.exchanges)
	return out
}

// GetHistory returns the formatted history of a session, or "" if it has none.
func (m *Manager) GetHistory(id string) string {
	return FormatHistory(m.Exchanges(id))
}

// AddExchange appends an exchange, creating the session if needed and
// evicting the oldest exchanges beyond the window.
func (m *Manager) AddExchange(id, query, answer string) {
	c := m.conversation(id, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges = append(c.exchanges, Exchange{Query: query, Answer: answer})
	if over := len(c.exchanges) - m.maxHistory; over > 0 {
		c.exchanges = append([]Exchange(nil), c.exchanges[over:]...)
	}
}

// ClearSession drops a session. It reports whether the session existed.
func (m *Manager) ClearSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// FormatHistory renders exchanges as "User: ..." / "Assistant: ..." line pairs.
func FormatHistory(exchanges []Exchange) string {
	if len(exchanges) == 0 {
		return ""
	}
	lines := make([]string, 0, 2*len(exchanges))
	for _, e := range exchanges {
		lines = append(lines, fmt.Sprintf("User: %s", e.Query), fmt.Sprintf("Assistant: %s", e.Answer))
	}
	return strings.Join(lines, "\n")
}
