package adapters

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/sahilchouksey/module-enhancer/model"
	"github.com/sahilchouksey/module-enhancer/services/digitalocean"
	"github.com/sahilchouksey/module-enhancer/utils/cache"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
)

const videoCachePrefix = "video:"

var whitespaceRun = regexp.MustCompile(`\s+`)

// VideoStore persists search results by normalized phrase
type VideoStore interface {
	Get(ctx context.Context, key string) ([]model.VideoResult, bool, error)
	Put(ctx context.Context, key string, videos []model.VideoResult) error
}

// NormalizeVideoQuery builds the cache key for a phrase
func NormalizeVideoQuery(query string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(query)), "_")
}

// CachedVideoSearcher memoizes video searches and spaces upstream calls.
// It never returns an error: failures are cached as empty results.
type CachedVideoSearcher struct {
	upstream VideoSearcher
	store    VideoStore
	limiter  *digitalocean.MinIntervalLimiter
	log      *logger.Logger
}

func NewCachedVideoSearcher(upstream VideoSearcher, store VideoStore, limiter *digitalocean.MinIntervalLimiter, log *logger.Logger) *CachedVideoSearcher {
	return &CachedVideoSearcher{
		upstream: upstream,
		store:    store,
		limiter:  limiter,
		log:      log,
	}
}

func (c *CachedVideoSearcher) SearchVideos(ctx context.Context, query string, max int) ([]model.VideoResult, error) {
	key := NormalizeVideoQuery(query)
	if key == "" {
		return []model.VideoResult{}, nil
	}

	if cached, ok, err := c.store.Get(ctx, key); err != nil {
		c.log.Warn("Video cache read failed", "key", key, "error", err)
	} else if ok {
		return limitVideos(cached, max), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		// Cancelled while waiting; nothing was fetched so nothing is cached
		return []model.VideoResult{}, nil
	}

	videos := []model.VideoResult{}
	if c.upstream != nil {
		found, err := c.upstream.SearchVideos(ctx, query, max)
		if err != nil {
			c.log.Warn("Video search failed, caching empty result", "query", query, "error", err)
		} else if found != nil {
			videos = found
		}
	}

	if err := c.store.Put(ctx, key, videos); err != nil {
		c.log.Warn("Video cache write failed", "key", key, "error", err)
	}
	return limitVideos(videos, max), nil
}

func limitVideos(videos []model.VideoResult, max int) []model.VideoResult {
	if max > 0 && len(videos) > max {
		return videos[:max]
	}
	return videos
}

// MemoryVideoStore keeps results for the process lifetime
type MemoryVideoStore struct {
	cache *cache.MemoryCache
}

func NewMemoryVideoStore() *MemoryVideoStore {
	return &MemoryVideoStore{cache: cache.NewMemoryCache()}
}

func (s *MemoryVideoStore) Get(ctx context.Context, key string) ([]model.VideoResult, bool, error) {
	var videos []model.VideoResult
	if err := s.cache.GetJSON(ctx, key, &videos); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return videos, true, nil
}

func (s *MemoryVideoStore) Put(ctx context.Context, key string, videos []model.VideoResult) error {
	return s.cache.SetJSON(ctx, key, videos)
}

// Len returns the number of cached phrases
func (s *MemoryVideoStore) Len() int {
	return s.cache.Len()
}

// RedisVideoStore shares results between processes. Keys never expire.
type RedisVideoStore struct {
	cache *cache.RedisCache
}

func NewRedisVideoStore(c *cache.RedisCache) *RedisVideoStore {
	return &RedisVideoStore{cache: c}
}

func (s *RedisVideoStore) Get(ctx context.Context, key string) ([]model.VideoResult, bool, error) {
	var videos []model.VideoResult
	if err := s.cache.GetJSON(ctx, videoCachePrefix+key, &videos); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if videos == nil {
		videos = []model.VideoResult{}
	}
	return videos, true, nil
}

func (s *RedisVideoStore) Put(ctx context.Context, key string, videos []model.VideoResult) error {
	return s.cache.SetJSON(ctx, videoCachePrefix+key, videos, 0)
}
