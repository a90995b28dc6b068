package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/mealmatch/internal/config"
	"github.com/iliyamo/mealmatch/internal/model"
)

type memSessions struct {
	mu       sync.Mutex
	sessions map[uint64]model.SwipeSession
}

func (m *memSessions) GetSession(_ context.Context, id uint64) (model.SwipeSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.SwipeSession{}, ErrNotFound
	}
	return s, nil
}

func (m *memSessions) SessionGroup(ctx context.Context, id uint64) (uint64, error) {
	s, err := m.GetSession(ctx, id)
	return s.GroupID, err
}

func (m *memSessions) IsMember(context.Context, uint64, uint64) (bool, error) { return true, nil }

func (m *memSessions) setStatus(id uint64, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	s.Status = status
	m.sessions[id] = s
}

// unreachableRedis fails every command at once.
func unreachableRedis(t *testing.T) *redis.Client {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

var cacheOn = config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "cache:session"}

func TestCachedSessionRepoReadsLiveStatus(t *testing.T) {
	ctx := context.Background()
	src := &memSessions{sessions: map[uint64]model.SwipeSession{7: {ID: 7, GroupID: 3, Status: model.SessionInProgress}}}
	repo := NewCachedSessionRepo(src, unreachableRedis(t), cacheOn, nil)
	require.IsType(t, &CachedSessionRepo{}, repo)

	s, err := repo.GetSession(ctx, 7)
	require.NoError(t, err)
	require.True(t, s.IsActive())

	src.setStatus(7, model.SessionCompleted)
	s, err = repo.GetSession(ctx, 7)
	require.NoError(t, err)
	require.False(t, s.IsActive())
}

func TestCachedSessionRepoGroupFallsThrough(t *testing.T) {
	ctx := context.Background()
	src := &memSessions{sessions: map[uint64]model.SwipeSession{7: {ID: 7, GroupID: 3, Status: model.SessionInProgress}}}
	repo := NewCachedSessionRepo(src, unreachableRedis(t), cacheOn, nil)

	group, err := repo.SessionGroup(ctx, 7)
	require.NoError(t, err)
	require.EqualValues(t, 3, group)

	_, err = repo.SessionGroup(ctx, 8)
	require.ErrorIs(t, err, ErrNotFound)

	require.Equal(t, "cache:session:7:group", repo.(*CachedSessionRepo).key(7))
}

func TestCachedSessionRepoDisabled(t *testing.T) {
	src := &memSessions{sessions: map[uint64]model.SwipeSession{}}
	require.Equal(t, SessionSource(src), NewCachedSessionRepo(src, nil, cacheOn, nil))

	off := cacheOn
	off.Enabled = false
	require.Equal(t, SessionSource(src), NewCachedSessionRepo(src, unreachableRedis(t), off, nil))
}
