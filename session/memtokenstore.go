package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

type (
	// TokenStore keeps the server side half of a session: which identity a
	// session id belongs to, and until when.
	TokenStore interface {
		Save(ctx context.Context, sid string, identityID string, ttl time.Duration) error
		Lookup(ctx context.Context, sid string) (identityID string, found bool, err error)
		Delete(ctx context.Context, sid string) error
	}

	memStore struct {
		cache *bigcache.BigCache
		now   func() time.Time
	}
)

// InMemoryTokenStore keeps sessions in a bigcache instance, entries are
// lost on restart or when the cache evicts them.
func InMemoryTokenStore(ctx context.Context, lifeWindow time.Duration) (TokenStore, error) {
	if lifeWindow <= 0 {
		lifeWindow = DefaultTTL
	}
	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.CleanWindow = time.Minute
	cache, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("session: unable to create token cache, cause %w", err)
	}
	return &memStore{
		cache: cache,
		now:   time.Now,
	}, nil
}

func (m *memStore) Save(ctx context.Context, sid string, identityID string, ttl time.Duration) error {
	entry := make([]byte, 8+len(identityID))
	binary.BigEndian.PutUint64(entry, uint64(m.now().Add(ttl).UnixNano()))
	copy(entry[8:], identityID)
	return m.cache.Set(sid, entry)
}

func (m *memStore) Lookup(ctx context.Context, sid string) (string, bool, error) {
	buf, err := m.cache.Get(sid)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	if len(buf) <= 8 {
		return "", false, nil
	}
	expires := time.Unix(0, int64(binary.BigEndian.Uint64(buf)))
	if !m.now().Before(expires) {
		m.cache.Delete(sid)
		return "", false, nil
	}
	return string(buf[8:]), true, nil
}

func (m *memStore) Delete(ctx context.Context, sid string) error {
	err := m.cache.Delete(sid)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}
