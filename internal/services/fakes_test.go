package services_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pairsense-backend/internal/models"
	"pairsense-backend/internal/repository"
	"pairsense-backend/internal/services"
)

var (
	_ repository.UserStore = (*memUserStore)(nil)
	_ repository.PairStore = (*memPairStore)(nil)
	_ services.Multicaster = (*fakeMulticaster)(nil)
)

// memUserStore is an in-memory UserStore with the same merge-write
// semantics as the Postgres implementation.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User

	weatherWrites int
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*models.User)}
}

func (s *memUserStore) put(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u.Clone()
}

func (s *memUserStore) Create(_ context.Context, user *models.User) error {
	s.put(user)
	return nil
}

func (s *memUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", repository.ErrNotFound)
	}
	return u.Clone(), nil
}

func (s *memUserStore) SetMood(_ context.Context, id string, mood models.MoodCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Mood = mood
	}
	return nil
}

func (s *memUserStore) SetLocation(_ context.Context, id string, loc models.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		l := loc
		u.Location = &l
	}
	return nil
}

func (s *memUserStore) SetWeather(_ context.Context, id string, w models.WeatherSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weatherWrites++
	if u, ok := s.users[id]; ok {
		snap := w
		u.Weather = &snap
	}
	return nil
}

func (s *memUserStore) TouchOpened(_ context.Context, id string, openedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		if u.LastOpenedAt == nil || u.LastOpenedAt.Before(openedAt) {
			t := openedAt
			u.LastOpenedAt = &t
		}
	}
	return nil
}

func (s *memUserStore) SetPairID(_ context.Context, id string, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		c := code
		u.PairID = &c
	}
	return nil
}

func (s *memUserStore) AddToken(_ context.Context, id string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	for _, t := range u.NotificationTokens {
		if t == token {
			return nil
		}
	}
	u.NotificationTokens = append(u.NotificationTokens, token)
	return nil
}

func (s *memUserStore) RemoveTokens(_ context.Context, id string, tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	drop := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		drop[t] = true
	}
	kept := u.NotificationTokens[:0]
	for _, t := range u.NotificationTokens {
		if !drop[t] {
			kept = append(kept, t)
		}
	}
	u.NotificationTokens = kept
	return nil
}

// memPairStore is an in-memory PairStore whose Join is a real
// compare-and-set under the store lock.
type memPairStore struct {
	mu    sync.Mutex
	pairs map[string]*models.Pair
	users *memUserStore
}

func newMemPairStore(users *memUserStore) *memPairStore {
	return &memPairStore{pairs: make(map[string]*models.Pair), users: users}
}

func (s *memPairStore) Upsert(_ context.Context, pair *models.Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.pairs[pair.Code]; ok {
		if existing.OwnerUID != pair.OwnerUID {
			return fmt.Errorf("code %s: %w", pair.Code, repository.ErrCodeTaken)
		}
		return nil
	}
	s.pairs[pair.Code] = pair.Clone()
	return nil
}

func (s *memPairStore) GetByCode(_ context.Context, code string) (*models.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pairs[code]
	if !ok {
		return nil, fmt.Errorf("pair not found: %w", repository.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *memPairStore) Join(ctx context.Context, code, joinerUID string) (bool, error) {
	s.mu.Lock()
	p, ok := s.pairs[code]
	if !ok || p.Status != models.PairWaiting {
		s.mu.Unlock()
		return false, nil
	}
	uid := joinerUID
	p.PartnerUID = &uid
	p.Status = models.PairActive
	s.mu.Unlock()

	if s.users != nil {
		_ = s.users.SetPairID(ctx, joinerUID, code)
	}
	return true, nil
}

// fakeMulticaster records batches and classifies tokens by prefix:
// "invalid-" tokens are rejected with an invalid-token outcome.
type fakeMulticaster struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (f *fakeMulticaster) SendMulticast(_ context.Context, tokens []string, _ services.PushPayload) (services.BatchResult, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), tokens...))
	f.mu.Unlock()

	if f.err != nil {
		return services.BatchResult{FailureCount: len(tokens)}, f.err
	}

	var res services.BatchResult
	for _, t := range tokens {
		if len(t) >= 8 && t[:8] == "invalid-" {
			res.FailureCount++
			res.InvalidTokens = append(res.InvalidTokens, t)
			continue
		}
		res.SuccessCount++
	}
	return res, nil
}

// stubWeather returns a canned snapshot and counts lookups.
type stubWeather struct {
	mu       sync.Mutex
	snapshot models.WeatherSnapshot
	err      error
	calls    int
}

func (s *stubWeather) Lookup(context.Context, float64, float64) (*models.WeatherSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	snap := s.snapshot
	return &snap, nil
}
