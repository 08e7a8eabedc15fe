// Package service holds the account and game business rules. It depends on
// storage only through the Repository interface so tests can substitute an
// in-memory fake.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"gamevault/internal/server/apperr"
	"gamevault/internal/server/auth"
	"gamevault/internal/server/models"
	"gamevault/internal/server/repository"
	"gamevault/internal/shared/passhash"
)

type Repository interface {
	CreateAccount(ctx context.Context, acc models.Account, passwordHash string) (models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (models.Account, string, error)

	ListGames(ctx context.Context, ownerID string, q models.GameQuery) ([]models.Game, int, error)
	CreateGame(ctx context.Context, g models.Game) (models.Game, error)
	GetGame(ctx context.Context, id string) (models.Game, error)
	UpdateGame(ctx context.Context, ownerID, id string, patch models.GamePatch) (models.Game, error)
	DeleteGame(ctx context.Context, ownerID, id string) error
}

type Services struct {
	Auth  *AuthService
	Games *GameService
}

// NewServices wires both services to repo. maxPageSize caps list limits;
// zero leaves them uncapped.
func NewServices(repo Repository, sessions *auth.Sessions, hasher passhash.Hasher, maxPageSize int) *Services {
	return &Services{
		Auth:  &AuthService{repo: repo, sessions: sessions, hasher: hasher},
		Games: &GameService{repo: repo, maxPageSize: maxPageSize},
	}
}

const (
	msgCredentialsRequired = "email and password required"
	msgEmailTaken          = "email already in use"
	msgInvalidCredentials  = "invalid credentials"
	msgPasswordTooLong     = "password too long"
)

// AuthService registers accounts, checks passwords and issues sessions.
type AuthService struct {
	repo     Repository
	sessions *auth.Sessions
	hasher   passhash.Hasher

	dummyOnce sync.Once
	dummyHash string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *AuthService) Register(ctx context.Context, email, password, name string) (models.Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.Account{}, apperr.Validation(msgCredentialsRequired)
	}
	_, _, err := a.repo.GetAccountByEmail(ctx, email)
	switch {
	case err == nil:
		return models.Account{}, apperr.Conflict(msgEmailTaken)
	case !errors.Is(err, repository.ErrNotFound):
		return models.Account{}, apperr.Internal(err)
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, passhash.ErrPasswordTooLong) {
			return models.Account{}, apperr.Validation(msgPasswordTooLong)
		}
		return models.Account{}, apperr.Internal(err)
	}
	acc := models.Account{Email: email}
	if n := strings.TrimSpace(name); n != "" {
		acc.Name = &n
	}
	acc, err = a.repo.CreateAccount(ctx, acc, hash)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.Account{}, apperr.Conflict(msgEmailTaken)
		}
		return models.Account{}, apperr.Internal(err)
	}
	return acc, nil
}

// VerifyCredentials returns the account for email when password matches.
// Unknown emails and wrong passwords fail identically.
func (a *AuthService) VerifyCredentials(ctx context.Context, email, password string) (models.Account, error) {
	acc, hash, err := a.repo.GetAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return models.Account{}, apperr.Internal(err)
		}
		// Burn a comparable amount of work so response time does not
		// reveal whether the email exists.
		_, _ = passhash.Verify(a.dummy(), password)
		return models.Account{}, apperr.Authentication(msgInvalidCredentials)
	}
	ok, err := passhash.Verify(hash, password)
	if err != nil || !ok {
		return models.Account{}, apperr.Authentication(msgInvalidCredentials)
	}
	return acc, nil
}

func (a *AuthService) dummy() string {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = a.hasher.Hash(uuid.NewString())
	})
	return a.dummyHash
}

func (a *AuthService) Login(ctx context.Context, email, password string) (models.TokenResponse, error) {
	if normalizeEmail(email) == "" || password == "" {
		return models.TokenResponse{}, apperr.Validation(msgCredentialsRequired)
	}
	acc, err := a.VerifyCredentials(ctx, email, password)
	if err != nil {
		return models.TokenResponse{}, err
	}
	token, err := a.sessions.Issue(acc.ID)
	if err != nil {
		return models.TokenResponse{}, apperr.Internal(err)
	}
	return models.TokenResponse{Token: token}, nil
}

// Authenticate resolves a presented session token to an account id.
func (a *AuthService) Authenticate(token string) (string, error) {
	return a.sessions.Verify(token)
}

const (
	msgTitleRequired = "title required"
	msgInvalidGameID = "invalid game id"
	msgGameNotFound  = "game not found"
	msgForbidden     = "forbidden"
)

// GameService manages games on behalf of their owner. Every operation is
// scoped by the owner id the caller authenticated as.
type GameService struct {
	repo        Repository
	maxPageSize int
}

// List returns one page of ownerID's games. Meta echoes the page and limit
// actually applied.
func (s *GameService) List(ctx context.Context, ownerID string, q models.GameQuery) (models.GameList, error) {
	q = q.Normalize(s.maxPageSize)
	games, total, err := s.repo.ListGames(ctx, ownerID, q)
	if err != nil {
		return models.GameList{}, apperr.Internal(err)
	}
	if games == nil {
		games = []models.Game{}
	}
	return models.GameList{
		Data: games,
		Meta: models.ListMeta{Total: total, Page: q.Page, Limit: q.Limit},
	}, nil
}

func (s *GameService) Create(ctx context.Context, ownerID string, in models.GameInput) (models.Game, error) {
	p := in.Patch()
	if p.Title == nil || *p.Title == "" {
		return models.Game{}, apperr.Validation(msgTitleRequired)
	}
	g := models.Game{
		OwnerID:     ownerID,
		Title:       *p.Title,
		Platform:    p.Platform,
		Description: p.Description,
		Status:      p.Status,
	}
	if p.HoursPlayed != nil {
		g.HoursPlayed = *p.HoursPlayed
	}
	if p.Favorite != nil {
		g.Favorite = *p.Favorite
	}
	g, err := s.repo.CreateGame(ctx, g)
	if err != nil {
		return models.Game{}, apperr.Internal(err)
	}
	return g, nil
}

func (s *GameService) Update(ctx context.Context, ownerID, gameID string, in models.GameInput) (models.Game, error) {
	id, err := s.authorize(ctx, ownerID, gameID)
	if err != nil {
		return models.Game{}, err
	}
	p := in.Patch()
	if p.Title != nil && *p.Title == "" {
		return models.Game{}, apperr.Validation(msgTitleRequired)
	}
	g, err := s.repo.UpdateGame(ctx, ownerID, id, p)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Game{}, apperr.NotFound(msgGameNotFound)
		}
		return models.Game{}, apperr.Internal(err)
	}
	return g, nil
}

func (s *GameService) Delete(ctx context.Context, ownerID, gameID string) error {
	id, err := s.authorize(ctx, ownerID, gameID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteGame(ctx, ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(msgGameNotFound)
		}
		return apperr.Internal(err)
	}
	return nil
}

// authorize validates gameID, then checks that the game exists and only
// then that ownerID owns it. It returns the canonical id.
func (s *GameService) authorize(ctx context.Context, ownerID, gameID string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(gameID))
	if err != nil {
		return "", apperr.Validation(msgInvalidGameID)
	}
	id := parsed.String()
	g, err := s.repo.GetGame(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperr.NotFound(msgGameNotFound)
		}
		return "", apperr.Internal(err)
	}
	if g.OwnerID != ownerID {
		return "", apperr.Authorization(msgForbidden)
	}
	return id, nil
}
