package db

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"
)

// LocalStore is the in-process stand-in for RedisDB, used when Redis is
// unreachable and in tests. Entries live until their TTL passes.
type LocalStore struct {
	mu      sync.Mutex
	entries map[string]localEntry
	now     func() time.Time
}

type localEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

func NewLocalStore() *LocalStore {
	return &LocalStore{entries: map[string]localEntry{}, now: time.Now}
}

func (s *LocalStore) put(key string, value []byte, ttl time.Duration) {
	e := localEntry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.entries[key] = e
}

func (s *LocalStore) get(key string) ([]byte, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return nil, false
	}
	return e.value, true
}

func (s *LocalStore) PutToken(ctx context.Context, purpose, token, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(tokenKey(purpose, token), []byte(value), ttl)
	return nil
}

func (s *LocalStore) TakeToken(ctx context.Context, purpose, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tokenKey(purpose, token)
	v, ok := s.get(key)
	if !ok {
		return "", ErrCacheMiss
	}
	delete(s.entries, key)
	return string(v), nil
}

func (s *LocalStore) SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put("cache:"+key, data, expiration)
	return nil
}

func (s *LocalStore) GetCache(ctx context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	data, ok := s.get("cache:" + key)
	s.mu.Unlock()
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

// InvalidateCache accepts the same glob patterns as Redis SCAN MATCH.
func (s *LocalStore) InvalidateCache(ctx context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if ok, _ := path.Match("cache:"+pattern, key); ok {
			delete(s.entries, key)
		}
	}
	return nil
}
