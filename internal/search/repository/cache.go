package repository

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/ports"
	"crm_search_backend/internal/search/query"
	"crm_search_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "search:page:v1:"

// CachedStore is a read-through Redis cache in front of another store.
// Redis failures are logged and the inner store answers instead.
type CachedStore struct {
	inner  ports.RecordStore
	client redis.Cmdable
	ttl    time.Duration
	log    *logger.Logger
}

var _ ports.RecordStore = (*CachedStore)(nil)

// NewCachedStore wraps inner. A non-positive ttl disables caching.
func NewCachedStore(inner ports.RecordStore, client redis.Cmdable, ttl time.Duration, log *logger.Logger) *CachedStore {
	return &CachedStore{inner: inner, client: client, ttl: ttl, log: log}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

type cachedPage struct {
	Records []domain.Record `json:"records"`
	Total   int             `json:"total"`
}

// Query implements ports.RecordStore.
func (s *CachedStore) Query(ctx context.Context, set query.PredicateSet) (ports.Page, error) {
	if s.ttl <= 0 {
		return s.inner.Query(ctx, set)
	}

	key, err := cacheKey(set)
	if err != nil {
		s.log.CacheError("key", err)
		return s.inner.Query(ctx, set)
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		page, decodeErr := decodePage(raw)
		if decodeErr == nil {
			return page, nil
		}
		s.log.CacheError("decode", decodeErr)
	case !errors.Is(err, redis.Nil):
		s.log.CacheError("get", err)
	}

	page, err := s.inner.Query(ctx, set)
	if err != nil {
		return ports.Page{}, err
	}

	encoded, err := json.Marshal(cachedPage{Records: page.Records, Total: page.Total})
	if err != nil {
		s.log.CacheError("encode", err)
		return page, nil
	}
	if err := s.client.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
		s.log.CacheError("set", err)
	}
	return page, nil
}

func cacheKey(set query.PredicateSet) (string, error) {
	payload, err := json.Marshal(set)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return cacheKeyPrefix + set.Table + ":" + hex.EncodeToString(sum[:]), nil
}

func decodePage(raw []byte) (ports.Page, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var cp cachedPage
	if err := dec.Decode(&cp); err != nil {
		return ports.Page{}, err
	}
	if cp.Records == nil {
		cp.Records = []domain.Record{}
	}
	return ports.Page{Records: cp.Records, Total: cp.Total}, nil
}
