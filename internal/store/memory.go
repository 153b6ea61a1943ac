package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/park285/cheese-chess/internal/domain"
)

// Memory keeps everything in process. It is the default backend and the one
// tests build on. Callers always get copies.
type Memory struct {
	mu sync.RWMutex

	nextID int

	games map[int]*domain.GameRecord
	users map[string]domain.User
	auth  map[string]domain.AuthTicket
}

func NewMemory() *Memory {
	return &Memory{
		games: make(map[int]*domain.GameRecord),
		users: make(map[string]domain.User),
		auth:  make(map[string]domain.AuthTicket),
	}
}

func (m *Memory) Create(ctx context.Context, name string) (*domain.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec := domain.NewGameRecord(m.nextID, name)
	m.games[rec.ID] = rec.Clone()
	return rec, nil
}

func (m *Memory) Load(ctx context.Context, id int) (*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.games[id]
	if !ok {
		return nil, gameNotFound(id)
	}
	return rec.Clone(), nil
}

func (m *Memory) Save(ctx context.Context, rec *domain.GameRecord) error {
	if rec == nil {
		return nilRecord()
	}
	m.mu.Lock()
	m.games[rec.ID] = rec.Clone()
	if rec.ID > m.nextID {
		m.nextID = rec.ID
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Update(ctx context.Context, id int, fn func(*domain.GameRecord) error) (*domain.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.games[id]
	if !ok {
		return nil, gameNotFound(id)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	m.games[id] = next.Clone()
	return next, nil
}

func (m *Memory) List(ctx context.Context) ([]*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.GameRecord, 0, len(m.games))
	for _, rec := range m.games {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Clear drops all games. The id sequence keeps counting.
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.games = make(map[int]*domain.GameRecord)
	m.mu.Unlock()
	return nil
}

func (m *Memory) CreateUser(ctx context.Context, u domain.User) error {
	key := strings.TrimSpace(u.Username)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[key]; exists {
		return fmt.Errorf("%w: username %q", domain.ErrAlreadyTaken, key)
	}
	m.users[key] = u
	return nil
}

func (m *Memory) GetUser(ctx context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[strings.TrimSpace(username)]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", domain.ErrNotFound, username)
	}
	return &u, nil
}

func (m *Memory) ClearUsers(ctx context.Context) error {
	m.mu.Lock()
	m.users = make(map[string]domain.User)
	m.mu.Unlock()
	return nil
}

func (m *Memory) PutAuth(ctx context.Context, t domain.AuthTicket) error {
	m.mu.Lock()
	m.auth[t.Token] = t
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetAuth(ctx context.Context, token string) (*domain.AuthTicket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.auth[token]
	if !ok {
		return nil, fmt.Errorf("%w: auth token", domain.ErrNotFound)
	}
	return &t, nil
}

func (m *Memory) DeleteAuth(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.auth[token]; !ok {
		return fmt.Errorf("%w: auth token", domain.ErrNotFound)
	}
	delete(m.auth, token)
	return nil
}

func (m *Memory) ClearAuth(ctx context.Context) error {
	m.mu.Lock()
	m.auth = make(map[string]domain.AuthTicket)
	m.mu.Unlock()
	return nil
}
