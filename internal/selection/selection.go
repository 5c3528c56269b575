// Package selection tracks the ephemeral set of inventory items a user has
// selected for bulk operations. The set is consumed by bulk delete and promo
// generation and cleared by an explicit deselect.
package selection

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store holds per-user selection sets.
type Store interface {
	Add(ctx context.Context, userID string, ids ...uint) error
	Remove(ctx context.Context, userID string, ids ...uint) error
	// Snapshot returns the current selection. Bulk actions operate on the
	// snapshot captured at call time, not on a live view.
	Snapshot(ctx context.Context, userID string) ([]uint, error)
	Clear(ctx context.Context, userID string) error
}

// redisStore keeps selections in Redis sets with a TTL so abandoned
// selections expire on their own.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed selection store.
func NewRedis(client *redis.Client) Store {
	return &redisStore{client: client, ttl: 30 * time.Minute}
}

func selectionKey(userID string) string {
	return "selection:" + userID
}

func (s *redisStore) Add(ctx context.Context, userID string, ids ...uint) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = strconv.FormatUint(uint64(id), 10)
	}

	key := selectionKey(userID)
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) Remove(ctx context.Context, userID string, ids ...uint) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = strconv.FormatUint(uint64(id), 10)
	}
	return s.client.SRem(ctx, selectionKey(userID), members...).Err()
}

func (s *redisStore) Snapshot(ctx context.Context, userID string) ([]uint, error) {
	raw, err := s.client.SMembers(ctx, selectionKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(raw))
	for _, member := range raw {
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt selection member %q: %w", member, err)
		}
		ids = append(ids, uint(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *redisStore) Clear(ctx context.Context, userID string) error {
	return s.client.Del(ctx, selectionKey(userID)).Err()
}

// memoryStore is an in-process selection store used by tests and
// single-node deployments without Redis.
type memoryStore struct {
	mu   sync.Mutex
	sets map[string]map[uint]struct{}
}

// NewMemory creates an in-memory selection store.
func NewMemory() Store {
	return &memoryStore{sets: make(map[string]map[uint]struct{})}
}

func (s *memoryStore) Add(ctx context.Context, userID string, ids ...uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[userID]
	if !ok {
		set = make(map[uint]struct{})
		s.sets[userID] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return nil
}

func (s *memoryStore) Remove(ctx context.Context, userID string, ids ...uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.sets[userID], id)
	}
	return nil
}

func (s *memoryStore) Snapshot(ctx context.Context, userID string) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint, 0, len(s.sets[userID]))
	for id := range s.sets[userID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *memoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, userID)
	return nil
}
