package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arbz/zeroday-engine/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary store and refresh the cache; reads check Redis
// first then fall back to the primary. List operations always hit the
// primary so sweeps never act on a stale universe.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

// --- Accounts ---

func (s *CachedStore) GetAccount(ctx context.Context, trader string) (model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(trader)).Bytes()
	if err == nil {
		var acc model.Account
		if json.Unmarshal(data, &acc) == nil {
			return acc, nil
		}
	}

	acc, err := s.primary.GetAccount(ctx, trader)
	if err != nil {
		return model.Account{}, err
	}
	s.cacheJSON(ctx, accountKey(trader), acc)
	return acc, nil
}

func (s *CachedStore) PutAccount(ctx context.Context, trader string, acc model.Account) error {
	if err := s.primary.PutAccount(ctx, trader, acc); err != nil {
		return err
	}
	s.cacheJSON(ctx, accountKey(trader), acc)
	return nil
}

func (s *CachedStore) ListAccounts(ctx context.Context) (map[string]model.Account, error) {
	return s.primary.ListAccounts(ctx)
}

// --- Positions ---

func (s *CachedStore) GetPosition(ctx context.Context, trader string) (model.Position, error) {
	data, err := s.rdb.Get(ctx, positionKey(trader)).Bytes()
	if err == nil {
		var pos model.Position
		if json.Unmarshal(data, &pos) == nil {
			return pos, nil
		}
	}

	pos, err := s.primary.GetPosition(ctx, trader)
	if err != nil {
		return model.Position{}, err
	}
	s.cacheJSON(ctx, positionKey(trader), pos)
	return pos, nil
}

func (s *CachedStore) PutPosition(ctx context.Context, trader string, pos model.Position) error {
	if err := s.primary.PutPosition(ctx, trader, pos); err != nil {
		return err
	}
	s.cacheJSON(ctx, positionKey(trader), pos)
	return nil
}

func (s *CachedStore) ListPositions(ctx context.Context) (map[string]model.Position, error) {
	return s.primary.ListPositions(ctx)
}

// --- Nonces ---

func (s *CachedStore) GetNonce(ctx context.Context, trader string) (uint64, error) {
	val, err := s.rdb.Get(ctx, nonceKey(trader)).Result()
	if err == nil {
		if nonce, perr := strconv.ParseUint(val, 10, 64); perr == nil {
			return nonce, nil
		}
	}

	nonce, err := s.primary.GetNonce(ctx, trader)
	if err != nil {
		return 0, err
	}
	s.rdb.Set(ctx, nonceKey(trader), strconv.FormatUint(nonce, 10), s.ttl)
	return nonce, nil
}

func (s *CachedStore) PutNonce(ctx context.Context, trader string, nonce uint64) error {
	if err := s.primary.PutNonce(ctx, trader, nonce); err != nil {
		return err
	}
	s.rdb.Set(ctx, nonceKey(trader), strconv.FormatUint(nonce, 10), s.ttl)
	return nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func accountKey(trader string) string  { return fmt.Sprintf("account:%s", trader) }
func positionKey(trader string) string { return fmt.Sprintf("position:%s", trader) }
func nonceKey(trader string) string    { return fmt.Sprintf("nonce:%s", trader) }
