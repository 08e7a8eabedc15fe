package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"gamevault/internal/server/models"
	"gamevault/internal/server/repository"
)

const gameColumns = `id, owner_id, title, platform, description, status, hours_played, favorite, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(r rowScanner) (models.Game, error) {
	var g models.Game
	err := r.Scan(&g.ID, &g.OwnerID, &g.Title, &g.Platform, &g.Description, &g.Status,
		&g.HoursPlayed, &g.Favorite, &g.CreatedAt)
	return g, err
}

// CreateGame inserts g, assigning its id and creation time.
func (s *Store) CreateGame(ctx context.Context, g models.Game) (models.Game, error) {
	id, err := s.newID()
	if err != nil {
		return models.Game{}, err
	}
	g.ID = id
	g.CreatedAt = s.timestamp()

	b := &binder{dialect: s.dialect}
	values := []string{
		b.bind(g.ID), b.bind(g.OwnerID), b.bind(g.Title), b.bind(g.Platform), b.bind(g.Description),
		b.bind(g.Status), b.bind(g.HoursPlayed), b.bind(g.Favorite), b.bind(g.CreatedAt),
	}
	query := `INSERT INTO games (` + gameColumns + `) VALUES (` + strings.Join(values, ", ") + `)`
	if _, err := s.db.ExecContext(ctx, query, b.args...); err != nil {
		return models.Game{}, fmt.Errorf("insert game: %w", err)
	}
	return g, nil
}

// GetGame looks a game up by id regardless of owner.
func (s *Store) GetGame(ctx context.Context, id string) (models.Game, error) {
	b := &binder{dialect: s.dialect}
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = ` + b.bind(id)
	g, err := scanGame(s.db.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Game{}, repository.ErrNotFound
		}
		return models.Game{}, fmt.Errorf("select game: %w", err)
	}
	return g, nil
}

// ListGames returns one page of ownerID's games matching q and the total
// number of matches. q must already be normalized.
func (s *Store) ListGames(ctx context.Context, ownerID string, q models.GameQuery) ([]models.Game, int, error) {
	where := &binder{dialect: s.dialect}
	conds := []string{`owner_id = ` + where.bind(ownerID)}
	if q.Platform != "" {
		conds = append(conds, `platform = `+where.bind(q.Platform))
	}
	if q.Status != "" {
		conds = append(conds, `status = `+where.bind(q.Status))
	}
	if q.Q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Q)) + "%"
		lower := s.dialect.lower()
		conds = append(conds, `(`+lower+`(title) LIKE `+where.bind(pattern)+` ESCAPE '\'`+
			` OR `+lower+`(COALESCE(description, '')) LIKE `+where.bind(pattern)+` ESCAPE '\')`)
	}
	clause := strings.Join(conds, " AND ")

	page := &binder{dialect: s.dialect, args: append([]any(nil), where.args...)}
	pageQuery := `SELECT ` + gameColumns + ` FROM games WHERE ` + clause +
		` ORDER BY created_at DESC, id DESC LIMIT ` + page.bind(q.Limit) + ` OFFSET ` + page.bind(q.Offset())
	countQuery := `SELECT COUNT(*) FROM games WHERE ` + clause

	var (
		games []models.Game
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx, pageQuery, page.args...)
		if err != nil {
			return fmt.Errorf("select games: %w", err)
		}
		defer rows.Close()
		out := make([]models.Game, 0, q.Limit)
		for rows.Next() {
			game, err := scanGame(rows)
			if err != nil {
				return fmt.Errorf("scan game: %w", err)
			}
			out = append(out, game)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate games: %w", err)
		}
		games = out
		return nil
	})
	g.Go(func() error {
		if err := s.db.QueryRowContext(gctx, countQuery, where.args...).Scan(&total); err != nil {
			return fmt.Errorf("count games: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return games, total, nil
}

// UpdateGame applies patch to the game id owned by ownerID and returns the
// stored result. It reports repository.ErrNotFound when no such row exists
// for that owner.
func (s *Store) UpdateGame(ctx context.Context, ownerID, id string, patch models.GamePatch) (models.Game, error) {
	b := &binder{dialect: s.dialect}
	var sets []string
	if patch.Title != nil {
		sets = append(sets, `title = `+b.bind(*patch.Title))
	}
	if patch.Platform != nil {
		sets = append(sets, `platform = `+b.bind(*patch.Platform))
	}
	if patch.Description != nil {
		sets = append(sets, `description = `+b.bind(*patch.Description))
	}
	if patch.Status != nil {
		sets = append(sets, `status = `+b.bind(*patch.Status))
	}
	if patch.HoursPlayed != nil {
		sets = append(sets, `hours_played = `+b.bind(*patch.HoursPlayed))
	}
	if patch.Favorite != nil {
		sets = append(sets, `favorite = `+b.bind(*patch.Favorite))
	}

	var query string
	if len(sets) == 0 {
		query = `SELECT ` + gameColumns + ` FROM games WHERE id = ` + b.bind(id) + ` AND owner_id = ` + b.bind(ownerID)
	} else {
		query = `UPDATE games SET ` + strings.Join(sets, ", ") +
			` WHERE id = ` + b.bind(id) + ` AND owner_id = ` + b.bind(ownerID) +
			` RETURNING ` + gameColumns
	}
	g, err := scanGame(s.db.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Game{}, repository.ErrNotFound
		}
		return models.Game{}, fmt.Errorf("update game: %w", err)
	}
	return g, nil
}

// DeleteGame removes the game id owned by ownerID.
func (s *Store) DeleteGame(ctx context.Context, ownerID, id string) error {
	b := &binder{dialect: s.dialect}
	query := `DELETE FROM games WHERE id = ` + b.bind(id) + ` AND owner_id = ` + b.bind(ownerID)
	res, err := s.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
