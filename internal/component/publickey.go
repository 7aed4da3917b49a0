package component

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// PublicKeyFetcher loads the client-side encryption key of the client key.
type PublicKeyFetcher interface {
	PublicKey(ctx context.Context) (string, error)
}

// PublicKeyRepository caches the public key and shares one in-flight fetch between
// concurrent callers.
type PublicKeyRepository struct {
	fetcher PublicKeyFetcher
	group   singleflight.Group

	mu  sync.RWMutex
	key string
}

func NewPublicKeyRepository(fetcher PublicKeyFetcher) *PublicKeyRepository {
	return &PublicKeyRepository{fetcher: fetcher}
}

func (r *PublicKeyRepository) Fetch(ctx context.Context) (string, error) {
	r.mu.RLock()
	key := r.key
	r.mu.RUnlock()
	if key != "" {
		return key, nil
	}

	v, err, shared := r.group.Do("public_key", func() (any, error) {
		return r.fetcher.PublicKey(ctx)
	})
	if err != nil {
		return "", err
	}
	key = v.(string)
	slog.Debug("public_key_fetched", "shared", shared)

	r.mu.Lock()
	r.key = key
	r.mu.Unlock()
	return key, nil
}
