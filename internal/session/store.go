package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/circuitbreaker"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metrics"
)

const (
	defaultTTL        = 24 * time.Hour
	defaultMaxLocal   = 1000
	defaultUserIndex  = 50
	sessionKeyPrefix  = "tailor:session:"
	userIndexKeyPrefix = "tailor:user-sessions:"
)

// Options tunes a Store
type Options struct {
	TTL       time.Duration
	MaxLocal  int
	UserIndex int
	Clock     func() time.Time
}

// Store keeps tailoring session records in Redis with a small local cache in front
type Store struct {
	client      *circuitbreaker.RedisWrapper
	logger      *zap.Logger
	ttl         time.Duration
	maxLocal    int
	userIndex   int
	now         func() time.Time
	mu          sync.RWMutex
	localCache  map[string]*Record
	cacheAccess map[string]time.Time
}

// NewStore connects to Redis at addr; the password comes from REDIS_PASSWORD
func NewStore(addr string, opts Options, logger *zap.Logger) (*Store, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	s := NewStoreFromClient(rc, opts, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return s, nil
}

// NewStoreFromClient wraps an existing client
func NewStoreFromClient(rc *redis.Client, opts Options, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.MaxLocal <= 0 {
		opts.MaxLocal = defaultMaxLocal
	}
	if opts.UserIndex <= 0 {
		opts.UserIndex = defaultUserIndex
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		client:      circuitbreaker.NewRedisWrapper(rc, "sessions", logger),
		logger:      logger,
		ttl:         opts.TTL,
		maxLocal:    opts.MaxLocal,
		userIndex:   opts.UserIndex,
		now:         opts.Clock,
		localCache:  make(map[string]*Record),
		cacheAccess: make(map[string]time.Time),
	}
}

// Save stores rec, assigning an ID and timestamps when missing. The record is indexed under
// its user so the latest sessions can be listed.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return ErrInvalidSession
	}
	now := s.now()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.CreatedAt.Add(s.ttl)
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ttl := rec.ExpiresAt.Sub(now)
	if ttl <= 0 {
		ttl = s.ttl
	}
	if err := s.client.Set(ctx, sessionKey(rec.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if rec.UserID != "" {
		key := userIndexKey(rec.UserID)
		if err := s.client.LPush(ctx, key, rec.ID).Err(); err != nil {
			s.logger.Warn("Failed to index session", zap.String("session_id", rec.ID), zap.Error(err))
		} else {
			s.client.LTrim(ctx, key, 0, int64(s.userIndex-1))
			s.client.Expire(ctx, key, s.ttl)
		}
	}

	s.cache(rec)
	metrics.SessionsCreated.Inc()
	s.logger.Debug("Saved session",
		zap.String("session_id", rec.ID),
		zap.String("project_id", rec.ProjectID),
	)
	return nil
}

// Get returns the record with id
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	rec, ok := s.localCache[id]
	s.mu.RUnlock()
	if ok {
		metrics.SessionCacheHits.Inc()
		if rec.IsExpired(s.now()) {
			_ = s.Delete(ctx, id)
			return nil, ErrSessionExpired
		}
		s.mu.Lock()
		s.cacheAccess[id] = s.now()
		s.mu.Unlock()
		return rec, nil
	}
	metrics.SessionCacheMisses.Inc()

	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var loaded Record
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if loaded.IsExpired(s.now()) {
		_ = s.Delete(ctx, id)
		return nil, ErrSessionExpired
	}
	s.cache(&loaded)
	return &loaded, nil
}

// ListForUser returns the user's most recent sessions, newest first. Expired or evicted
// entries are skipped.
func (s *Store) ListForUser(ctx context.Context, userID string, limit int) ([]*Record, error) {
	if limit <= 0 || limit > s.userIndex {
		limit = s.userIndex
	}
	ids, err := s.client.LRange(ctx, userIndexKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]*Record, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rec, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes a record
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.mu.Lock()
	delete(s.localCache, id)
	delete(s.cacheAccess, id)
	s.mu.Unlock()
	return nil
}

// Close closes the Redis client
func (s *Store) Close() error {
	return s.client.Close()
}

// RedisWrapper exposes the breaker-wrapped client for health checks
func (s *Store) RedisWrapper() *circuitbreaker.RedisWrapper {
	return s.client
}

// LocalLen is the number of locally cached records
func (s *Store) LocalLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.localCache)
}

func (s *Store) cache(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localCache[rec.ID] = rec
	s.cacheAccess[rec.ID] = s.now()
	s.cleanupLocalCache()
}

// cleanupLocalCache drops the least recently accessed half once the cache is over capacity.
// Caller holds mu.
func (s *Store) cleanupLocalCache() {
	if len(s.localCache) <= s.maxLocal {
		return
	}
	type accessEntry struct {
		id string
		at time.Time
	}
	entries := make([]accessEntry, 0, len(s.localCache))
	for id := range s.localCache {
		entries = append(entries, accessEntry{id: id, at: s.cacheAccess[id]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	toRemove := len(entries) - s.maxLocal/2
	for i := 0; i < toRemove; i++ {
		delete(s.localCache, entries[i].id)
		delete(s.cacheAccess, entries[i].id)
	}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func userIndexKey(userID string) string { return userIndexKeyPrefix + userID }
