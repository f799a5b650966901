// Package cache holds the takedown queue summary between list requests.
// Two backends share one contract: a Redis key when REDIS_ADDR is configured,
// and a process-local value otherwise. A miss is never an error; callers
// recompute from the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/review-takedown-backend/internal/repo"
)

// SummaryCache stores the aggregate queue summary.
type SummaryCache interface {
	Get(ctx context.Context) (repo.TakedownSummary, bool)
	Set(ctx context.Context, s repo.TakedownSummary)
	Invalidate(ctx context.Context)
}

// Memory is a single-value TTL cache guarded by a mutex.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	val     repo.TakedownSummary
	expires time.Time
	ok      bool
}

// NewMemory returns an empty in-process cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now}
}

func (m *Memory) Get(_ context.Context) (repo.TakedownSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ok || !m.now().Before(m.expires) {
		return repo.TakedownSummary{}, false
	}
	return m.val, true
}

func (m *Memory) Set(_ context.Context, s repo.TakedownSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.val, m.ok, m.expires = s, true, m.now().Add(m.ttl)
}

func (m *Memory) Invalidate(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ok = false
}

const summaryKey = "takedown:summary"

// Redis keeps the summary as JSON under one key with a TTL, so every API
// replica shares it and an invalidation on one is seen by all.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Connect builds a client from a redis:// URL or a host:port address and
// verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	var opt *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: addr, Password: password, DB: db}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (r *Redis) Get(ctx context.Context) (repo.TakedownSummary, bool) {
	var s repo.TakedownSummary
	raw, err := r.client.Get(ctx, summaryKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("summary cache read failed")
		}
		return s, false
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, false
	}
	return s, true
}

func (r *Redis) Set(ctx context.Context, s repo.TakedownSummary) {
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, summaryKey, raw, r.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("summary cache write failed")
	}
}

func (r *Redis) Invalidate(ctx context.Context) {
	if err := r.client.Del(ctx, summaryKey).Err(); err != nil {
		log.Warn().Err(err).Msg("summary cache invalidate failed")
	}
}
