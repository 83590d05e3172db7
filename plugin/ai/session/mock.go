package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockSessionService is an in-memory SessionService for testing. It writes
// nothing to disk; Snapshots counts the writes a FileStore would have made.
type MockSessionService struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	snapshots map[string]int
	welcome   string
	seq       int

	// AppendErr, when set, is returned by every AppendTurn call on a known session.
	AppendErr error
}

// NewMockSessionService creates an empty MockSessionService.
func NewMockSessionService(welcome string) *MockSessionService {
	return &MockSessionService{
		sessions:  make(map[string]*Session),
		snapshots: make(map[string]int),
		welcome:   welcome,
	}
}

// CreateSession implements SessionService.
func (m *MockSessionService) CreateSession(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	id := fmt.Sprintf("mock%04d", m.seq)
	now := time.Now()
	sess := &Session{
		ID:        id,
		CreatedAt: now,
		Turns:     []Turn{{Role: RoleAssistant, Content: m.welcome, Timestamp: now}},
	}
	m.sessions[id] = sess
	m.snapshots[id]++
	return sess.Clone(), nil
}

// AppendTurn implements SessionService.
func (m *MockSessionService) AppendTurn(_ context.Context, sessionID string, role Role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if m.AppendErr != nil {
		return m.AppendErr
	}
	sess.Turns = append(sess.Turns, Turn{Role: role, Content: content, Timestamp: time.Now()})
	m.snapshots[sessionID]++
	return nil
}

// GetSession implements SessionService.
func (m *MockSessionService) GetSession(_ context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// ListTranscripts implements SessionService.
func (m *MockSessionService) ListTranscripts(_ context.Context) ([]TranscriptInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]TranscriptInfo, 0, len(m.sessions))
	for id := range m.sessions {
		name := SnapshotName(id)
		infos = append(infos, TranscriptInfo{File: "/static/historial/" + name, Name: name})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// DeleteTranscript implements SessionService.
func (m *MockSessionService) DeleteTranscript(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := sessionIDFromName(name)
	if !ok {
		return false, nil
	}
	if _, exists := m.sessions[id]; !exists {
		return false, nil
	}
	delete(m.sessions, id)
	delete(m.snapshots, id)
	return true, nil
}

// Snapshots returns how many times the session would have been persisted.
func (m *MockSessionService) Snapshots(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[sessionID]
}

// Ensure MockSessionService implements SessionService
var _ SessionService = (*MockSessionService)(nil)
