package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/mealmatch/internal/config"
	"github.com/iliyamo/mealmatch/internal/model"
)

// SessionSource is the read side of SessionRepo.
type SessionSource interface {
	GetSession(ctx context.Context, id uint64) (model.SwipeSession, error)
	SessionGroup(ctx context.Context, id uint64) (uint64, error)
	IsMember(ctx context.Context, groupID, userID uint64) (bool, error)
}

// CachedSessionRepo is a read-through redis cache over a SessionSource.  Only
// the owning group of a session is cached, since it never changes; status
// and membership always come from the source.  Redis failures are logged and
// fall through to the source, so a flaky cache never blocks admission.
type CachedSessionRepo struct {
	src SessionSource
	rdb *redis.Client
	cfg config.CacheConfig
	log *zap.Logger
}

// NewCachedSessionRepo returns src unchanged when caching is disabled or no
// redis client is configured.
func NewCachedSessionRepo(src SessionSource, rdb *redis.Client, cfg config.CacheConfig, log *zap.Logger) SessionSource {
	if !cfg.Enabled || rdb == nil {
		return src
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedSessionRepo{src: src, rdb: rdb, cfg: cfg, log: log}
}

func (c *CachedSessionRepo) key(id uint64) string {
	return c.cfg.Prefix + ":" + strconv.FormatUint(id, 10) + ":group"
}

// GetSession always reads the source so a session that just completed is
// never admitted from a stale entry.
func (c *CachedSessionRepo) GetSession(ctx context.Context, id uint64) (model.SwipeSession, error) {
	return c.src.GetSession(ctx, id)
}

// SessionGroup serves from redis when possible and fills the cache on a miss.
// Not-found results are not cached.
func (c *CachedSessionRepo) SessionGroup(ctx context.Context, id uint64) (uint64, error) {
	key := c.key(id)
	group, err := c.rdb.Get(ctx, key).Uint64()
	if err == nil {
		return group, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.log.Warn("session cache read failed", zap.String("key", key), zap.Error(err))
	}

	group, err = c.src.SessionGroup(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := c.rdb.SetEx(ctx, key, strconv.FormatUint(group, 10), c.cfg.TTL).Err(); err != nil {
		c.log.Warn("session cache write failed", zap.String("key", key), zap.Error(err))
	}
	return group, nil
}

func (c *CachedSessionRepo) IsMember(ctx context.Context, groupID, userID uint64) (bool, error) {
	return c.src.IsMember(ctx, groupID, userID)
}
