package identity

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-entitlements/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const userCacheKeyPrefix = "entitlements::user_id::v1"

// CachedUserDirectory memoizes reference to user id lookups. Failed lookups
// are not cached.
type CachedUserDirectory struct {
	base  core.UserDirectory
	cache repositorycache.CacheService
}

func NewCachedUserDirectory(base core.UserDirectory, cacheService repositorycache.CacheService) (*CachedUserDirectory, error) {
	if base == nil {
		return nil, fmt.Errorf("identity: base user directory is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("identity: user cache service is required")
	}
	return &CachedUserDirectory{base: base, cache: cacheService}, nil
}

// NewCachedUserDirectoryFromConfig builds the cache service from the cache
// config section. A zero TTL keeps the library default.
func NewCachedUserDirectoryFromConfig(base core.UserDirectory, cfg core.CacheConfig) (*CachedUserDirectory, error) {
	cacheConfig := repositorycache.DefaultConfig()
	if ttl := cfg.UserTTL(); ttl > 0 {
		cacheConfig.TTL = ttl
	}
	service, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("identity: create user cache: %w", err)
	}
	return NewCachedUserDirectory(base, service)
}

// UserCacheKey returns entitlements::user_id::v1::<reference> with the
// reference trimmed and path escaped.
func UserCacheKey(reference string) (string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", fmt.Errorf("identity: user reference is required")
	}
	return userCacheKeyPrefix + "::" + url.PathEscape(reference), nil
}

func (d *CachedUserDirectory) ResolveUserID(ctx context.Context, reference string) (string, error) {
	if d == nil || d.base == nil || d.cache == nil {
		return "", fmt.Errorf("identity: cached user directory is not configured")
	}
	key, err := UserCacheKey(reference)
	if err != nil {
		return "", err
	}
	reference = strings.TrimSpace(reference)
	return repositorycache.GetOrFetch(ctx, d.cache, key, func(ctx context.Context) (string, error) {
		return d.base.ResolveUserID(ctx, reference)
	})
}

func (d *CachedUserDirectory) Invalidate(ctx context.Context, reference string) error {
	if d == nil || d.cache == nil {
		return nil
	}
	key, err := UserCacheKey(reference)
	if err != nil {
		return err
	}
	return d.cache.Delete(ctx, key)
}

var _ core.UserDirectory = (*CachedUserDirectory)(nil)
