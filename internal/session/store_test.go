package session

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestStore(t *testing.T, opts Options) (*Store, *miniredis.Miniredis, *testClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	clock := &testClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	opts.Clock = clock.now
	s := NewStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), opts, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = s.Close() })
	return s, mr, clock
}

func TestStore_SaveAndGet(t *testing.T) {
	s, mr, clock := newTestStore(t, Options{TTL: time.Hour})
	ctx := context.Background()

	rec := &Record{UserID: "u1", ProjectID: "p1", Task: "add caching", TokenCount: 812, QualityScore: 74,
		Response: json.RawMessage(`{"context":"## Project Context"}`)}
	require.NoError(t, s.Save(ctx, rec))
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, clock.t, rec.CreatedAt)
	assert.Equal(t, clock.t.Add(time.Hour), rec.ExpiresAt)

	assert.True(t, mr.Exists(sessionKey(rec.ID)))
	assert.Equal(t, time.Hour, mr.TTL(sessionKey(rec.ID)))

	// a fresh store has to go through Redis
	other := NewStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), Options{Clock: clock.now}, nil)
	got, err := other.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "add caching", got.Task)
	assert.Equal(t, 74, got.QualityScore)
	assert.JSONEq(t, `{"context":"## Project Context"}`, string(got.Response))
	assert.Equal(t, 1, other.LocalLen())
}

func TestStore_SaveRejectsMissingProject(t *testing.T) {
	s, _, _ := newTestStore(t, Options{})
	assert.ErrorIs(t, s.Save(context.Background(), &Record{UserID: "u"}), ErrInvalidSession)
	assert.ErrorIs(t, s.Save(context.Background(), nil), ErrInvalidSession)
}

func TestStore_NotFoundAndCorrupt(t *testing.T) {
	s, mr, _ := newTestStore(t, Options{})
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, mr.Set(sessionKey("bad"), "{not json"))
	_, err = s.Get(ctx, "bad")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestStore_ExpiredLocalEntry(t *testing.T) {
	s, _, clock := newTestStore(t, Options{TTL: time.Minute})
	ctx := context.Background()
	rec := &Record{ProjectID: "p"}
	require.NoError(t, s.Save(ctx, rec))

	clock.t = clock.t.Add(2 * time.Minute)
	_, err := s.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 0, s.LocalLen())
}

func TestStore_ListForUserNewestFirst(t *testing.T) {
	s, _, clock := newTestStore(t, Options{UserIndex: 3})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		clock.t = clock.t.Add(time.Second)
		require.NoError(t, s.Save(ctx, &Record{ID: fmt.Sprintf("s%d", i), UserID: "u1", ProjectID: "p"}))
	}
	require.NoError(t, s.Save(ctx, &Record{ID: "other", UserID: "u2", ProjectID: "p"}))

	got, err := s.ListForUser(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "s4", got[0].ID)
	assert.Equal(t, "s2", got[2].ID)

	require.NoError(t, s.Delete(ctx, "s3"))
	got, err = s.ListForUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s4", got[0].ID)
}

func TestStore_LocalCacheBounded(t *testing.T) {
	s, _, clock := newTestStore(t, Options{MaxLocal: 4})
	ctx := context.Background()
	for i := 0; i < 9; i++ {
		clock.t = clock.t.Add(time.Second)
		require.NoError(t, s.Save(ctx, &Record{ID: fmt.Sprintf("s%d", i), ProjectID: "p"}))
	}
	assert.LessOrEqual(t, s.LocalLen(), 4)

	// evicted entries are still served from Redis
	got, err := s.Get(ctx, "s0")
	require.NoError(t, err)
	assert.Equal(t, "s0", got.ID)
}

func TestStore_RedisDown(t *testing.T) {
	s, mr, _ := newTestStore(t, Options{})
	mr.Close()
	err := s.Save(context.Background(), &Record{ProjectID: "p"})
	assert.Error(t, err)
}
