package config

import "time"

// CacheConfig controls the redis read-through cache in front of the
// session to group lookup done by the membership check.  Admission resolves
// the same session for every participant that connects; the group never
// changes, so only the TTL bounds memory.  Session status is never cached.
// When Enabled is false or no redis client is available the repository is
// used directly.
type CacheConfig struct {
    Enabled bool
    TTL     time.Duration
    Prefix  string
}

// LoadCacheConfig reads CACHE_* variables, falling back to defaults.
func LoadCacheConfig() CacheConfig {
    cfg := CacheConfig{
        Enabled: envBool("CACHE_ENABLED", true),
        TTL:     envDur("CACHE_TTL", 5*time.Second),
        Prefix:  envStr("CACHE_PREFIX", "cache:session"),
    }
    if cfg.TTL <= 0 {
        cfg.TTL = time.Second
    }
    return cfg
}
