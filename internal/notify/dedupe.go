package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper suppresses repeat reminders. MarkSeen returns true when the key
// was already recorded inside the TTL window.
type Deduper interface {
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Close() error
}

// dedupeKey derives a stable key from the reminder identity. Two reminders
// dedupe only when patient, type, and message all match.
func dedupeKey(patientID string, rt ReminderType, message string) string {
	sum := sha256.Sum256([]byte(message))
	return fmt.Sprintf("reminder:%s:%s:%s", patientID, rt, hex.EncodeToString(sum[:8]))
}

// RedisDeduper backs the dedupe window with Redis so suppression holds
// across server instances.
type RedisDeduper struct {
	client *redis.Client
}

// RedisConfig configures the dedupe Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisDeduper creates a Redis-backed deduper and verifies connectivity.
func NewRedisDeduper(ctx context.Context, cfg RedisConfig) (*RedisDeduper, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisDeduper{client: client}, nil
}

// MarkSeen records the key with SETNX semantics.
func (d *RedisDeduper) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	created, err := d.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("recording dedupe key: %w", err)
	}
	return !created, nil
}

// Close closes the Redis connection.
func (d *RedisDeduper) Close() error {
	return d.client.Close()
}

// MemoryDeduper is an in-process deduper for the standalone MCP server.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryDeduper creates an in-memory deduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]time.Time)}
}

// MarkSeen records the key, expiring stale entries as it goes.
func (d *MemoryDeduper) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	for k, expiry := range d.seen {
		if now.After(expiry) {
			delete(d.seen, k)
		}
	}

	if expiry, ok := d.seen[key]; ok && now.Before(expiry) {
		return true, nil
	}
	d.seen[key] = now.Add(ttl)
	return false, nil
}

// Close is a no-op.
func (d *MemoryDeduper) Close() error {
	return nil
}
