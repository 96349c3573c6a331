// Package flow provides the Redis-backed session manager used when several
// bot processes share one conversation population.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vmoreyra/registrobot/internal/models"
)

// DefaultSessionTTL bounds how long an abandoned session lingers before
// Redis expires it. Completed and cancelled sessions are deleted explicitly.
const DefaultSessionTTL = 24 * time.Hour

// RedisSessionManager stores sessions as JSON values keyed by conversation.
type RedisSessionManager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionManager creates a session manager on the given Redis
// client, verifying connectivity first.
func NewRedisSessionManager(ctx context.Context, client *redis.Client, ttl time.Duration) (*RedisSessionManager, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("RedisSessionManager ping failed", "error", err)
		return nil, fmt.Errorf("redis unavailable: %w", err)
	}
	slog.Debug("RedisSessionManager connected", "ttl", ttl)
	return &RedisSessionManager{client: client, ttl: ttl}, nil
}

func sessionKey(conversationID string) string {
	return "session:" + conversationID
}

// Get retrieves the session for a conversation, or nil when none exists.
func (m *RedisSessionManager) Get(ctx context.Context, conversationID string) (*models.Session, error) {
	data, err := m.client.Get(ctx, sessionKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisSessionManager Get failed", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("failed to read session %s: %w", conversationID, err)
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		slog.Error("RedisSessionManager Get decode failed", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("failed to decode session %s: %w", conversationID, err)
	}
	return &sess, nil
}

// Put stores or replaces the session for its conversation.
func (m *RedisSessionManager) Put(ctx context.Context, sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sess.ConversationID, err)
	}
	if err := m.client.Set(ctx, sessionKey(sess.ConversationID), data, m.ttl).Err(); err != nil {
		slog.Error("RedisSessionManager Put failed", "error", err, "conversation_id", sess.ConversationID)
		return fmt.Errorf("failed to store session %s: %w", sess.ConversationID, err)
	}
	slog.Debug("RedisSessionManager Put", "conversation_id", sess.ConversationID, "state", sess.State)
	return nil
}

// Delete discards the session for a conversation.
func (m *RedisSessionManager) Delete(ctx context.Context, conversationID string) error {
	if err := m.client.Del(ctx, sessionKey(conversationID)).Err(); err != nil {
		slog.Error("RedisSessionManager Delete failed", "error", err, "conversation_id", conversationID)
		return fmt.Errorf("failed to delete session %s: %w", conversationID, err)
	}
	slog.Debug("RedisSessionManager Delete", "conversation_id", conversationID)
	return nil
}
