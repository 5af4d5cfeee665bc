package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-chess-server/internal/domain"
)

// Memory is an in-process Repository used for development runs without a
// database and by tests.
type Memory struct {
	mu sync.RWMutex

	nextID   int64
	results  []domain.MatchResult
	profiles map[string]domain.Profile
	friends  map[string][]string // login -> friend logins

	// FailWrites makes SaveResult return this error when set.
	FailWrites error
}

func NewMemoryRepository() *Memory {
	return &Memory{
		profiles: make(map[string]domain.Profile),
		friends:  make(map[string][]string),
	}
}

// PutUser registers a login with its display name.
func (m *Memory) PutUser(login, name string) {
	m.mu.Lock()
	m.profiles[strings.TrimSpace(login)] = domain.Profile{Login: strings.TrimSpace(login), Name: name}
	m.mu.Unlock()
}

// AddFriend records a one-directional friendship, matching the friends table.
func (m *Memory) AddFriend(login, friend string) {
	m.mu.Lock()
	m.friends[login] = append(m.friends[login], friend)
	m.mu.Unlock()
}

func (m *Memory) SaveResult(ctx context.Context, winner, loser string) (*domain.MatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return nil, m.FailWrites
	}
	m.nextID++
	res := domain.MatchResult{ID: m.nextID, Winner: winner, Loser: loser, PlayedAt: time.Now()}
	m.results = append(m.results, res)
	return &res, nil
}

// Results returns a copy of every stored result in insertion order.
func (m *Memory) Results() []domain.MatchResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.MatchResult(nil), m.results...)
}

func (m *Memory) GetProfile(ctx context.Context, login string) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[strings.TrimSpace(login)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &p, nil
}

func (m *Memory) GetFriends(ctx context.Context, login string) ([]domain.Friend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Friend
	for _, f := range m.friends[login] {
		name := f
		if p, ok := m.profiles[f]; ok {
			name = p.Name
		}
		out = append(out, domain.Friend{Login: f, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out, nil
}

func (m *Memory) Close() error { return nil }
