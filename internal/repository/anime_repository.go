package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/google/uuid"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type AnimeRepository struct {
	db *sql.DB
}

func NewAnimeRepository(db *sql.DB) *AnimeRepository {
	return &AnimeRepository{db: db}
}

const animeColumns = `id, mal_id, kitsu_id, title_romaji, title_english, format, episode_count,
	year, cover_image, path, quality_profile_id, monitored, created_at, updated_at`

func scanAnime(row rowScanner) (*models.Anime, error) {
	a := &models.Anime{}
	var profileID sql.NullString
	err := row.Scan(
		&a.ID, &a.MalID, &a.KitsuID, &a.TitleRomaji, &a.TitleEnglish,
		&a.Format, &a.EpisodeCount, &a.Year, &a.CoverImage, &a.Path,
		&profileID, &a.Monitored, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if profileID.Valid {
		if id, err := uuid.Parse(profileID.String); err == nil {
			a.QualityProfileID = &id
		}
	}
	return a, nil
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

// Upsert inserts or refreshes an anime keyed by its AniList id. An existing
// library path is kept when the incoming record has none.
func (r *AnimeRepository) Upsert(ctx context.Context, a *models.Anime) error {
	query := `
		INSERT INTO anime (id, mal_id, kitsu_id, title_romaji, title_english, format,
			episode_count, year, cover_image, path, quality_profile_id, monitored)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			mal_id = excluded.mal_id,
			kitsu_id = excluded.kitsu_id,
			title_romaji = excluded.title_romaji,
			title_english = excluded.title_english,
			format = excluded.format,
			episode_count = excluded.episode_count,
			year = excluded.year,
			cover_image = excluded.cover_image,
			path = COALESCE(excluded.path, anime.path),
			quality_profile_id = COALESCE(excluded.quality_profile_id, anime.quality_profile_id),
			monitored = excluded.monitored,
			updated_at = CURRENT_TIMESTAMP`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.MalID, a.KitsuID, a.TitleRomaji,
		a.TitleEnglish, a.Format, a.EpisodeCount, a.Year, a.CoverImage, a.Path,
		nullUUID(a.QualityProfileID), a.Monitored)
	if err != nil {
		return fmt.Errorf("upsert anime %d: %w", a.ID, err)
	}
	return nil
}

func (r *AnimeRepository) GetByID(ctx context.Context, id int) (*models.Anime, error) {
	query := `SELECT ` + animeColumns + ` FROM anime WHERE id = $1`
	a, err := scanAnime(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("anime %d: %w", id, apperr.ErrNotFound)
	}
	return a, err
}

func (r *AnimeRepository) List(ctx context.Context) ([]*models.Anime, error) {
	return r.list(ctx, `SELECT `+animeColumns+` FROM anime ORDER BY title_romaji`)
}

func (r *AnimeRepository) ListMonitored(ctx context.Context) ([]*models.Anime, error) {
	return r.list(ctx, `SELECT `+animeColumns+` FROM anime WHERE monitored = TRUE ORDER BY title_romaji`)
}

func (r *AnimeRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Anime, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Anime
	for rows.Next() {
		a, err := scanAnime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AnimeRepository) UpdatePath(ctx context.Context, id int, path string) error {
	return r.exec(ctx, id, `UPDATE anime SET path = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id, path)
}

func (r *AnimeRepository) SetQualityProfile(ctx context.Context, id int, profileID uuid.UUID) error {
	return r.exec(ctx, id, `UPDATE anime SET quality_profile_id = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		id, profileID.String())
}

func (r *AnimeRepository) SetMonitored(ctx context.Context, id int, monitored bool) error {
	return r.exec(ctx, id, `UPDATE anime SET monitored = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id, monitored)
}

func (r *AnimeRepository) Delete(ctx context.Context, id int) error {
	return r.exec(ctx, id, `DELETE FROM anime WHERE id = $1`, id)
}

func (r *AnimeRepository) exec(ctx context.Context, id int, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("anime %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
