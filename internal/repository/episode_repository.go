package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/models"
)

type EpisodeRepository struct {
	db *sql.DB
}

func NewEpisodeRepository(db *sql.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

const episodeStatusColumns = `anime_id, episode_number, season, monitored, quality_id, is_seadex,
	release_group, file_path, file_size, downloaded_at, media_info, updated_at`

func scanEpisodeStatus(row rowScanner) (*models.EpisodeStatus, error) {
	e := &models.EpisodeStatus{}
	var mediaInfo sql.NullString
	err := row.Scan(
		&e.AnimeID, &e.EpisodeNumber, &e.Season, &e.Monitored, &e.QualityID, &e.IsSeadex,
		&e.ReleaseGroup, &e.FilePath, &e.FileSize, &e.DownloadedAt, &mediaInfo, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if mediaInfo.Valid && mediaInfo.String != "" {
		var mi models.MediaInfo
		if err := json.Unmarshal([]byte(mediaInfo.String), &mi); err == nil {
			e.MediaInfo = &mi
		}
	}
	return e, nil
}

// ──────────────────── Status ────────────────────

// FindStatus returns nil without error when the episode has no row.
func (r *EpisodeRepository) FindStatus(ctx context.Context, animeID int, episode float64) (*models.EpisodeStatus, error) {
	query := `SELECT ` + episodeStatusColumns + ` FROM episode_status WHERE anime_id = $1 AND episode_number = $2`
	e, err := scanEpisodeStatus(r.db.QueryRowContext(ctx, query, animeID, episode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *EpisodeRepository) ListStatuses(ctx context.Context, animeID int) ([]*models.EpisodeStatus, error) {
	query := `SELECT ` + episodeStatusColumns + ` FROM episode_status WHERE anime_id = $1 ORDER BY episode_number`
	return r.listStatuses(ctx, query, animeID)
}

// ListDownloaded returns every episode that currently points at a file.
func (r *EpisodeRepository) ListDownloaded(ctx context.Context, animeID int) ([]*models.EpisodeStatus, error) {
	query := `SELECT ` + episodeStatusColumns + ` FROM episode_status
		WHERE anime_id = $1 AND file_path IS NOT NULL AND file_path <> '' ORDER BY episode_number`
	return r.listStatuses(ctx, query, animeID)
}

func (r *EpisodeRepository) listStatuses(ctx context.Context, query string, args ...interface{}) ([]*models.EpisodeStatus, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.EpisodeStatus
	for rows.Next() {
		e, err := scanEpisodeStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EpisodeRepository) MarkDownloaded(ctx context.Context, p models.MarkDownloadedParams) error {
	var mediaInfo interface{}
	if p.MediaInfo != nil {
		b, err := json.Marshal(p.MediaInfo)
		if err != nil {
			return fmt.Errorf("encode media info: %w", err)
		}
		mediaInfo = string(b)
	}
	var group interface{}
	if p.ReleaseGroup != "" {
		group = p.ReleaseGroup
	}
	season := p.Season
	if season < 1 {
		season = 1
	}

	query := `
		INSERT INTO episode_status (anime_id, episode_number, season, monitored, quality_id, is_seadex,
			release_group, file_path, file_size, downloaded_at, media_info, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP)
		ON CONFLICT (anime_id, episode_number) DO UPDATE SET
			season = excluded.season,
			quality_id = excluded.quality_id,
			is_seadex = excluded.is_seadex,
			release_group = excluded.release_group,
			file_path = excluded.file_path,
			file_size = excluded.file_size,
			downloaded_at = excluded.downloaded_at,
			media_info = excluded.media_info,
			updated_at = CURRENT_TIMESTAMP`
	_, err := r.db.ExecContext(ctx, query, p.AnimeID, p.EpisodeNumber, season, p.QualityID, p.IsSeadex,
		group, p.FilePath, p.FileSize, time.Now().UTC(), mediaInfo)
	if err != nil {
		return fmt.Errorf("mark episode %d/%g downloaded: %w", p.AnimeID, p.EpisodeNumber, err)
	}
	return nil
}

const clearDownloadSet = `file_path = NULL, file_size = NULL, quality_id = NULL, release_group = NULL,
	is_seadex = FALSE, downloaded_at = NULL, media_info = NULL, updated_at = CURRENT_TIMESTAMP`

// ClearDownloadIfPath clears the file only if the row still points at path,
// so a concurrent re-import is never undone.
func (r *EpisodeRepository) ClearDownloadIfPath(ctx context.Context, animeID int, episode float64, path string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE episode_status SET `+clearDownloadSet+` WHERE anime_id = $1 AND episode_number = $2 AND file_path = $3`,
		animeID, episode, path)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *EpisodeRepository) UpdateFilePath(ctx context.Context, animeID int, episode float64, path string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE episode_status SET file_path = $3, updated_at = CURRENT_TIMESTAMP WHERE anime_id = $1 AND episode_number = $2`,
		animeID, episode, path)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("episode %d/%g: %w", animeID, episode, apperr.ErrNotFound)
	}
	return nil
}

// ──────────────────── Metadata ────────────────────

const episodeMetadataColumns = `anime_id, number, title, title_japanese, aired,
	title_source, title_japanese_source, aired_source`

func (r *EpisodeRepository) UpsertEpisodeMetadata(ctx context.Context, m *models.EpisodeMetadata) error {
	query := `
		INSERT INTO episode_metadata (anime_id, number, title, title_japanese, aired,
			title_source, title_japanese_source, aired_source, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
		ON CONFLICT (anime_id, number) DO UPDATE SET
			title = excluded.title,
			title_japanese = excluded.title_japanese,
			aired = excluded.aired,
			title_source = excluded.title_source,
			title_japanese_source = excluded.title_japanese_source,
			aired_source = excluded.aired_source,
			updated_at = CURRENT_TIMESTAMP`
	_, err := r.db.ExecContext(ctx, query, m.AnimeID, m.Number, m.Title, m.TitleJapanese, m.Aired,
		sourceValue(m.TitleSource), sourceValue(m.TitleJapaneseSource), sourceValue(m.AiredSource))
	return err
}

func (r *EpisodeRepository) ListEpisodeMetadata(ctx context.Context, animeID int) ([]*models.EpisodeMetadata, error) {
	query := `SELECT ` + episodeMetadataColumns + ` FROM episode_metadata WHERE anime_id = $1 ORDER BY number`
	rows, err := r.db.QueryContext(ctx, query, animeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.EpisodeMetadata
	for rows.Next() {
		m := &models.EpisodeMetadata{}
		var titleSrc, jpSrc, airedSrc sql.NullString
		if err := rows.Scan(&m.AnimeID, &m.Number, &m.Title, &m.TitleJapanese, &m.Aired,
			&titleSrc, &jpSrc, &airedSrc); err != nil {
			return nil, err
		}
		m.TitleSource = sourcePtr(titleSrc)
		m.TitleJapaneseSource = sourcePtr(jpSrc)
		m.AiredSource = sourcePtr(airedSrc)
		out = append(out, m)
	}
	return out, rows.Err()
}

func sourceValue(s *models.MetadataSource) interface{} {
	if s == nil {
		return nil
	}
	return string(*s)
}

func sourcePtr(ns sql.NullString) *models.MetadataSource {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	s := models.MetadataSource(ns.String)
	return &s
}
