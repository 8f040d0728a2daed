package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/google/uuid"
)

type RecycleBinRepository struct {
	db *sql.DB
}

func NewRecycleBinRepository(db *sql.DB) *RecycleBinRepository {
	return &RecycleBinRepository{db: db}
}

const recycledColumns = `id, original_path, recycled_path, size, anime_id, episode_number, deleted_at`

func scanRecycled(row rowScanner) (*models.RecycledFile, error) {
	f := &models.RecycledFile{}
	var id string
	if err := row.Scan(&id, &f.OriginalPath, &f.RecycledPath, &f.Size,
		&f.AnimeID, &f.EpisodeNumber, &f.DeletedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("recycled file id %q: %w", id, err)
	}
	f.ID = parsed
	return f, nil
}

func (r *RecycleBinRepository) Insert(ctx context.Context, f *models.RecycledFile) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.DeletedAt.IsZero() {
		f.DeletedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recycle_bin (id, original_path, recycled_path, size, anime_id, episode_number, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID.String(), f.OriginalPath, f.RecycledPath, f.Size, f.AnimeID, f.EpisodeNumber, f.DeletedAt)
	return err
}

func (r *RecycleBinRepository) Get(ctx context.Context, id uuid.UUID) (*models.RecycledFile, error) {
	f, err := scanRecycled(r.db.QueryRowContext(ctx,
		`SELECT `+recycledColumns+` FROM recycle_bin WHERE id = $1`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recycled file %s: %w", id, apperr.ErrNotFound)
	}
	return f, err
}

func (r *RecycleBinRepository) List(ctx context.Context) ([]*models.RecycledFile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recycledColumns+` FROM recycle_bin ORDER BY deleted_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.RecycledFile
	for rows.Next() {
		f, err := scanRecycled(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListOlderThan filters in Go; timestamp text comparison differs between
// the two drivers.
func (r *RecycleBinRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.RecycledFile, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.RecycledFile
	for _, f := range all {
		if f.DeletedAt.Before(cutoff) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *RecycleBinRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recycle_bin WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recycled file %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
