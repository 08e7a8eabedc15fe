package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gamevault/internal/server/models"
	"gamevault/internal/server/repository"
)

// memRepo is an in-memory Repository.
type memRepo struct {
	mu       sync.Mutex
	accounts map[string]memAccount // by email
	games    map[string]models.Game
	clock    time.Time

	failWith error
}

type memAccount struct {
	acc  models.Account
	hash string
}

func newMemRepo() *memRepo {
	return &memRepo{
		accounts: map[string]memAccount{},
		games:    map[string]models.Game{},
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *memRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memRepo) CreateAccount(_ context.Context, acc models.Account, hash string) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return models.Account{}, r.failWith
	}
	if _, ok := r.accounts[acc.Email]; ok {
		return models.Account{}, repository.ErrDuplicate
	}
	acc.ID = uuid.NewString()
	acc.CreatedAt = r.tick()
	r.accounts[acc.Email] = memAccount{acc: acc, hash: hash}
	return acc, nil
}

func (r *memRepo) GetAccountByEmail(_ context.Context, email string) (models.Account, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return models.Account{}, "", r.failWith
	}
	a, ok := r.accounts[email]
	if !ok {
		return models.Account{}, "", repository.ErrNotFound
	}
	return a.acc, a.hash, nil
}

func (r *memRepo) ListGames(_ context.Context, ownerID string, q models.GameQuery) ([]models.Game, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, 0, r.failWith
	}
	needle := strings.ToLower(q.Q)
	var all []models.Game
	for _, g := range r.games {
		if g.OwnerID != ownerID {
			continue
		}
		if q.Platform != "" && (g.Platform == nil || *g.Platform != q.Platform) {
			continue
		}
		if q.Status != "" && (g.Status == nil || *g.Status != q.Status) {
			continue
		}
		if needle != "" {
			desc := ""
			if g.Description != nil {
				desc = *g.Description
			}
			if !strings.Contains(strings.ToLower(g.Title), needle) && !strings.Contains(strings.ToLower(desc), needle) {
				continue
			}
		}
		all = append(all, g)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	start := min(q.Offset(), total)
	end := min(start+q.Limit, total)
	return all[start:end], total, nil
}

func (r *memRepo) CreateGame(_ context.Context, g models.Game) (models.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return models.Game{}, r.failWith
	}
	g.ID = uuid.Must(uuid.NewV7()).String()
	g.CreatedAt = r.tick()
	r.games[g.ID] = g
	return g, nil
}

func (r *memRepo) GetGame(_ context.Context, id string) (models.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return models.Game{}, r.failWith
	}
	g, ok := r.games[id]
	if !ok {
		return models.Game{}, repository.ErrNotFound
	}
	return g, nil
}

func (r *memRepo) UpdateGame(_ context.Context, ownerID, id string, p models.GamePatch) (models.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[id]
	if !ok || g.OwnerID != ownerID {
		return models.Game{}, repository.ErrNotFound
	}
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.Platform != nil {
		g.Platform = p.Platform
	}
	if p.Description != nil {
		g.Description = p.Description
	}
	if p.Status != nil {
		g.Status = p.Status
	}
	if p.HoursPlayed != nil {
		g.HoursPlayed = *p.HoursPlayed
	}
	if p.Favorite != nil {
		g.Favorite = *p.Favorite
	}
	r.games[id] = g
	return g, nil
}

func (r *memRepo) DeleteGame(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[id]
	if !ok || g.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(r.games, id)
	return nil
}
