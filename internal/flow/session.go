// Package flow implements the dialogue state machine driving the
// registration flows, plus the per-conversation session management.
package flow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vmoreyra/registrobot/internal/models"
)

// SessionManager owns the ephemeral per-conversation sessions. Sessions
// exist only between flow entry and completion or cancellation; nothing is
// kept for finished conversations.
type SessionManager interface {
	// Get retrieves the session for a conversation, or nil when none exists.
	Get(ctx context.Context, conversationID string) (*models.Session, error)

	// Put stores or replaces the session for its conversation.
	Put(ctx context.Context, sess *models.Session) error

	// Delete discards the session for a conversation. Deleting a missing
	// session is not an error.
	Delete(ctx context.Context, conversationID string) error
}

// InMemorySessionManager keeps sessions in a mutex-guarded map. This is the
// default for single-process deployments.
type InMemorySessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewInMemorySessionManager creates an empty in-memory session manager.
func NewInMemorySessionManager() *InMemorySessionManager {
	slog.Debug("Creating InMemorySessionManager")
	return &InMemorySessionManager{sessions: make(map[string]*models.Session)}
}

// Get retrieves the session for a conversation, or nil when none exists.
func (m *InMemorySessionManager) Get(ctx context.Context, conversationID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[conversationID]
	if !ok {
		return nil, nil
	}
	// Copy so handlers never mutate shared state outside Put.
	cp := *sess
	cp.Data = make(map[models.DataKey]string, len(sess.Data))
	for k, v := range sess.Data {
		cp.Data[k] = v
	}
	return &cp, nil
}

// Put stores or replaces the session for its conversation.
func (m *InMemorySessionManager) Put(ctx context.Context, sess *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ConversationID] = sess
	slog.Debug("InMemorySessionManager Put", "conversation_id", sess.ConversationID, "state", sess.State)
	return nil
}

// Delete discards the session for a conversation.
func (m *InMemorySessionManager) Delete(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, conversationID)
	slog.Debug("InMemorySessionManager Delete", "conversation_id", conversationID)
	return nil
}
