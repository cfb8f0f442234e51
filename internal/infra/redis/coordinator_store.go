package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"rapid-trivia-service/internal/app"
)

// markerTimeout bounds a liveness marker write so a slow Redis cannot hold up the game.
const markerTimeout = 200 * time.Millisecond

// CoordinatorStore is a Redis-aware implementation of app.CoordinatorRepository.
// Notes:
//   - Coordinators stay in process; a round has exactly one owner and its
//     submissions must be serialized by that owner's lock.
//   - Redis marks which channels this instance is running, so operators (and
//     other instances) can see live channels with SCAN trivia:channel:*.
type CoordinatorStore struct {
	client  *redis.Client
	ttl     time.Duration
	factory func(channel string) *app.Coordinator

	mu     sync.RWMutex
	rounds map[string]*app.Coordinator
}

func NewCoordinatorStore(client *redis.Client, ttl time.Duration, factory func(channel string) *app.Coordinator) *CoordinatorStore {
	return &CoordinatorStore{
		client:  client,
		ttl:     ttl,
		factory: factory,
		rounds:  make(map[string]*app.Coordinator),
	}
}

func (s *CoordinatorStore) GetOrCreate(channel string) *app.Coordinator {
	s.mu.Lock()
	c, ok := s.rounds[channel]
	if !ok {
		c = s.factory(channel)
		s.rounds[channel] = c
	}
	s.mu.Unlock()

	// best-effort liveness marker, refreshed while the channel is played
	s.markLive(channel)
	return c
}

func (s *CoordinatorStore) Get(channel string) (*app.Coordinator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.rounds[channel]
	return c, ok
}

func (s *CoordinatorStore) DeleteIfIdle(channel string) {
	s.mu.Lock()
	c, ok := s.rounds[channel]
	idle := ok && c.Idle()
	if idle {
		delete(s.rounds, channel)
	}
	s.mu.Unlock()
	if !idle {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), markerTimeout)
	defer cancel()
	_ = s.client.Del(ctx, s.key(channel)).Err()
}

func (s *CoordinatorStore) markLive(channel string) {
	ctx, cancel := context.WithTimeout(context.Background(), markerTimeout)
	defer cancel()
	_ = s.client.Set(ctx, s.key(channel), "1", s.ttl).Err()
}

func (s *CoordinatorStore) key(channel string) string {
	return "trivia:channel:" + channel
}
