package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"marketpulse/internal/domain/memory"
)

// Memory-context key patterns:
// - memctx:{tenant_id}:{user_id}:prefs        - hash of user preferences
// - memctx:{tenant_id}:{user_id}:interactions - list of recent interactions, newest first
// - memctx:{tenant_id}:{user_id}:learnings    - list of learned facts

// MemoryStoreConfig contains configuration for the contextual memory store.
type MemoryStoreConfig struct {
	MaxInteractions int           // Interactions returned per snapshot
	MaxLearnings    int           // Learnings returned per snapshot
	InteractionTTL  time.Duration // Retention of the interaction list
}

func DefaultMemoryStoreConfig() MemoryStoreConfig {
	return MemoryStoreConfig{
		MaxInteractions: 20,
		MaxLearnings:    50,
		InteractionTTL:  30 * 24 * time.Hour,
	}
}

// MemoryStore reads and writes user-specific contextual memory in Redis.
// The dispatcher consumes it read-only via Snapshot.
type MemoryStore struct {
	client *goredis.Client
	config MemoryStoreConfig
}

func NewMemoryStore(client *goredis.Client, config MemoryStoreConfig) *MemoryStore {
	return &MemoryStore{client: client, config: config}
}

func (s *MemoryStore) prefsKey(tenantID, userID uuid.UUID) string {
	return fmt.Sprintf("memctx:%s:%s:prefs", tenantID, userID)
}

func (s *MemoryStore) interactionsKey(tenantID, userID uuid.UUID) string {
	return fmt.Sprintf("memctx:%s:%s:interactions", tenantID, userID)
}

func (s *MemoryStore) learningsKey(tenantID, userID uuid.UUID) string {
	return fmt.Sprintf("memctx:%s:%s:learnings", tenantID, userID)
}

// Snapshot assembles the memory context for a user in a single pipeline
// round trip. Missing keys yield an empty snapshot, not an error.
func (s *MemoryStore) Snapshot(ctx context.Context, tenantID, userID uuid.UUID) (*memory.Context, error) {
	pipe := s.client.Pipeline()
	prefsCmd := pipe.HGetAll(ctx, s.prefsKey(tenantID, userID))
	interactionsCmd := pipe.LRange(ctx, s.interactionsKey(tenantID, userID), 0, int64(s.config.MaxInteractions-1))
	learningsCmd := pipe.LRange(ctx, s.learningsKey(tenantID, userID), 0, int64(s.config.MaxLearnings-1))
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return nil, err
	}

	snapshot := &memory.Context{}
	if prefs := prefsCmd.Val(); len(prefs) > 0 {
		snapshot.Preferences = prefs
	}
	for _, raw := range interactionsCmd.Val() {
		var interaction memory.Interaction
		if err := json.Unmarshal([]byte(raw), &interaction); err != nil {
			continue
		}
		snapshot.RecentInteractions = append(snapshot.RecentInteractions, interaction)
	}
	snapshot.Learnings = learningsCmd.Val()
	return snapshot, nil
}

// RecordInteraction prepends an interaction and trims the list.
func (s *MemoryStore) RecordInteraction(ctx context.Context, tenantID, userID uuid.UUID, interaction memory.Interaction) error {
	data, err := json.Marshal(interaction)
	if err != nil {
		return err
	}
	key := s.interactionsKey(tenantID, userID)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(s.config.MaxInteractions*5))
	pipe.Expire(ctx, key, s.config.InteractionTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// SetPreference upserts one preference field.
func (s *MemoryStore) SetPreference(ctx context.Context, tenantID, userID uuid.UUID, field, value string) error {
	return s.client.HSet(ctx, s.prefsKey(tenantID, userID), field, value).Err()
}

// AddLearning prepends a learned fact and trims the list.
func (s *MemoryStore) AddLearning(ctx context.Context, tenantID, userID uuid.UUID, fact string) error {
	key := s.learningsKey(tenantID, userID)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, fact)
	pipe.LTrim(ctx, key, 0, int64(s.config.MaxLearnings-1))
	_, err := pipe.Exec(ctx)
	return err
}

// Ping checks if Redis is available
func (s *MemoryStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
