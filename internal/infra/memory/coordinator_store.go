package memory

import (
	"sync"

	"rapid-trivia-service/internal/app"
)

// CoordinatorFactory builds the coordinator for a channel on first use.
type CoordinatorFactory func(channel string) *app.Coordinator

// CoordinatorStore is an in-memory implementation of app.CoordinatorRepository.
type CoordinatorStore struct {
	factory CoordinatorFactory

	mu     sync.RWMutex
	rounds map[string]*app.Coordinator
}

func NewCoordinatorStore(factory CoordinatorFactory) *CoordinatorStore {
	return &CoordinatorStore{
		factory: factory,
		rounds:  make(map[string]*app.Coordinator),
	}
}

func (s *CoordinatorStore) GetOrCreate(channel string) *app.Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.rounds[channel]; ok {
		return c
	}
	c := s.factory(channel)
	s.rounds[channel] = c
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
	defer s.mu.Unlock()
	c, ok := s.rounds[channel]
	if !ok {
		return
	}
	if c.Idle() {
		delete(s.rounds, channel)
	}
}
