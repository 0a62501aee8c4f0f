package storage

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

var _ Backend = (*CachedBackend)(nil)

const cacheGenStripes = 64

// CachedBackend keeps recently used items of another backend in a local
// freecache. Writes go through to the inner backend first; an item is
// cached only after the inner backend accepted it.
//
// Every write or removal bumps the generation of the key's stripe. A read
// that missed the cache fills it only if no write touched the stripe while
// the inner backend was being read.
type CachedBackend struct {
	inner      Backend
	cache      *freecache.Cache
	ttlSeconds int

	genMu [cacheGenStripes]sync.Mutex
	gen   [cacheGenStripes]uint64
}

func NewCachedBackend(inner Backend, cacheSizeBytes, ttlSeconds int) *CachedBackend {
	return &CachedBackend{
		inner:      inner,
		cache:      freecache.NewCache(cacheSizeBytes),
		ttlSeconds: ttlSeconds,
	}
}

func (b *CachedBackend) ForClient(clientID string) Storage {
	return &cachedStorage{
		backend:  b,
		inner:    b.inner.ForClient(clientID),
		clientID: clientID,
	}
}

// HitRate is the ratio of cache hits to lookups since the cache was created.
func (b *CachedBackend) HitRate() float64 {
	return b.cache.HitRate()
}

type cachedStorage struct {
	backend  *CachedBackend
	inner    Storage
	clientID string
}

func (s *cachedStorage) cacheKey(key string) []byte {
	return []byte(s.clientID + "||" + key)
}

func genStripe(cacheKey []byte) int {
	h := fnv.New32a()
	_, _ = h.Write(cacheKey)
	return int(h.Sum32() % cacheGenStripes)
}

func (b *CachedBackend) generation(stripe int) uint64 {
	b.genMu[stripe].Lock()
	defer b.genMu[stripe].Unlock()
	return b.gen[stripe]
}

// fillIfUnchanged caches value unless the stripe moved past gen.
func (b *CachedBackend) fillIfUnchanged(stripe int, gen uint64, cacheKey, value []byte) {
	b.genMu[stripe].Lock()
	defer b.genMu[stripe].Unlock()
	if b.gen[stripe] != gen {
		return
	}
	if err := b.cache.Set(cacheKey, value, b.ttlSeconds); err != nil {
		// values larger than 1/1024 of the cache size are not cacheable
		log.Debugf("storage cache set: %s", err)
	}
}

// invalidate bumps the stripe generation and then either caches value or,
// when value is nil, drops the cached entry.
func (b *CachedBackend) invalidate(stripe int, cacheKey, value []byte) {
	b.genMu[stripe].Lock()
	defer b.genMu[stripe].Unlock()
	b.gen[stripe]++
	if value == nil {
		b.cache.Del(cacheKey)
		return
	}
	if err := b.cache.Set(cacheKey, value, b.ttlSeconds); err != nil {
		b.cache.Del(cacheKey)
		log.Debugf("storage cache set: %s", err)
	}
}

func (s *cachedStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	if s.clientID == "" {
		return "", false, ErrEmptyClientID
	}

	cacheKey := s.cacheKey(key)
	cached, err := s.backend.cache.Get(cacheKey)
	if err == nil {
		log.Tracef("storage cache hit: %s", key)
		return string(cached), true, nil
	}
	if !errors.Is(err, freecache.ErrNotFound) {
		log.Warnf("storage cache get %s: %s", key, err)
	}

	stripe := genStripe(cacheKey)
	gen := s.backend.generation(stripe)

	val, found, err := s.inner.GetItem(ctx, key)
	if err != nil || !found {
		return val, found, err
	}

	s.backend.fillIfUnchanged(stripe, gen, cacheKey, []byte(val))
	return val, true, nil
}

func (s *cachedStorage) SetItem(ctx context.Context, key, value string) error {
	if s.clientID == "" {
		return ErrEmptyClientID
	}

	cacheKey := s.cacheKey(key)
	stripe := genStripe(cacheKey)
	if err := s.inner.SetItem(ctx, key, value); err != nil {
		s.backend.invalidate(stripe, cacheKey, nil)
		return err
	}

	s.backend.invalidate(stripe, cacheKey, []byte(value))
	return nil
}

func (s *cachedStorage) RemoveItem(ctx context.Context, key string) error {
	if s.clientID == "" {
		return ErrEmptyClientID
	}

	cacheKey := s.cacheKey(key)
	stripe := genStripe(cacheKey)
	err := s.inner.RemoveItem(ctx, key)
	// dropped even when the inner removal failed, the next read goes to the source
	s.backend.invalidate(stripe, cacheKey, nil)
	return err
}
