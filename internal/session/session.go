// Package session keeps the per-chat conversation state between updates.
package session

import (
	"context"
	"sync"
	"time"
)

type State string

const (
	StateIdle                State = "idle"
	StateAwaitingDate        State = "awaiting_date"
	StateAwaitingMonth       State = "awaiting_month"
	StateAwaitingChartChoice State = "awaiting_chart_choice"
)

func (s State) Valid() bool {
	switch s {
	case StateIdle, StateAwaitingDate, StateAwaitingMonth, StateAwaitingChartChoice:
		return true
	}
	return false
}

// Session is the state of one chat. Month is the last month summarized and
// is only meaningful in StateAwaitingChartChoice.
type Session struct {
	ChatID    int64     `json:"chat_id"`
	State     State     `json:"state"`
	Month     string    `json:"month,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New(chatID int64) *Session {
	return &Session{ChatID: chatID, State: StateIdle}
}

// Store persists sessions. Get never fails for an unknown chat; it returns
// a fresh idle session instead.
type Store interface {
	Get(ctx context.Context, chatID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, chatID int64) error
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

func (m *MemoryStore) Get(ctx context.Context, chatID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return New(chatID), nil
	}
	return &s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *s
	stored.UpdatedAt = time.Now().UTC()
	m.sessions[s.ChatID] = stored
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, chatID)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
