package memory

import (
	"context"
	"sync"
	"time"

	"rapid-trivia-service/internal/domain"
)

// PlayerStore keeps player aggregates in process memory.
type PlayerStore struct {
	mu      sync.RWMutex
	players map[string]*domain.PlayerAggregate
}

func NewPlayerStore() *PlayerStore {
	return &PlayerStore{players: make(map[string]*domain.PlayerAggregate)}
}

func (s *PlayerStore) Apply(_ context.Context, delta domain.AggregateDelta, at time.Time) (domain.PlayerAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[delta.PlayerID]
	if !ok {
		p = &domain.PlayerAggregate{PlayerID: delta.PlayerID}
		s.players[delta.PlayerID] = p
	}
	p.Apply(delta, at)
	return *p, nil
}

func (s *PlayerStore) Get(_ context.Context, playerID string) (domain.PlayerAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok {
		return domain.PlayerAggregate{}, domain.ErrPlayerNotFound
	}
	return *p, nil
}

func (s *PlayerStore) Top(_ context.Context, window domain.ScoreWindow, limit int) ([]domain.PlayerAggregate, error) {
	window, err := domain.ParseWindow(string(window))
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	all := make([]domain.PlayerAggregate, 0, len(s.players))
	for _, p := range s.players {
		all = append(all, *p)
	}
	s.mu.RUnlock()
	return domain.RankPlayers(all, window, limit), nil
}

func (s *PlayerStore) ResetWindow(_ context.Context, window domain.ScoreWindow) error {
	var probe domain.PlayerAggregate
	if err := probe.ResetWindow(window); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if err := p.ResetWindow(window); err != nil {
			return err
		}
	}
	return nil
}
