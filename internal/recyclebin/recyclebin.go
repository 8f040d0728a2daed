// Package recyclebin holds files displaced by renames and deletions until
// their retention period passes.
package recyclebin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/fileops"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Store interface {
	Insert(ctx context.Context, f *models.RecycledFile) error
	Get(ctx context.Context, id uuid.UUID) (*models.RecycledFile, error)
	List(ctx context.Context) ([]*models.RecycledFile, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.RecycledFile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Bin struct {
	root      string
	retention time.Duration
	store     Store
}

func New(root string, retentionDays int, store Store) *Bin {
	return &Bin{root: root, retention: time.Duration(retentionDays) * 24 * time.Hour, store: store}
}

// Recycle moves path into the bin under a fresh id directory so equal
// basenames never collide.
func (b *Bin) Recycle(ctx context.Context, path string, animeID *int, episode *float64) (*models.RecycledFile, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("recycle %s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}

	entry := &models.RecycledFile{
		ID:            uuid.New(),
		OriginalPath:  path,
		Size:          fi.Size(),
		AnimeID:       animeID,
		EpisodeNumber: episode,
		DeletedAt:     time.Now().UTC(),
	}
	entry.RecycledPath = filepath.Join(b.root, entry.ID.String(), filepath.Base(path))

	if err := fileops.Move(path, entry.RecycledPath); err != nil {
		return nil, fmt.Errorf("recycle %s: %w", path, err)
	}
	if err := b.store.Insert(ctx, entry); err != nil {
		if mvErr := fileops.Move(entry.RecycledPath, path); mvErr != nil {
			log.Error().Str("component", "recyclebin").Str("path", path).Err(mvErr).Msg("failed to return recycled file")
			return nil, fmt.Errorf("%w: recycled %s to %s but could not record or return it: %v",
				apperr.ErrCritical, path, entry.RecycledPath, mvErr)
		}
		return nil, fmt.Errorf("record recycled file: %w", err)
	}

	log.Info().Str("component", "recyclebin").Str("path", path).Str("id", entry.ID.String()).Msg("file recycled")
	return entry, nil
}

// Restore moves a recycled file back to its original location, which must
// be free.
func (b *Bin) Restore(ctx context.Context, id uuid.UUID) (*models.RecycledFile, error) {
	entry, err := b.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if fileops.Exists(entry.OriginalPath) {
		return nil, fmt.Errorf("restore %s: original location is occupied: %w", entry.OriginalPath, apperr.ErrValidation)
	}
	if err := fileops.Move(entry.RecycledPath, entry.OriginalPath); err != nil {
		return nil, fmt.Errorf("restore %s: %w", entry.OriginalPath, err)
	}
	os.Remove(filepath.Dir(entry.RecycledPath))
	if err := b.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	log.Info().Str("component", "recyclebin").Str("path", entry.OriginalPath).Msg("file restored")
	return entry, nil
}

func (b *Bin) List(ctx context.Context) ([]*models.RecycledFile, error) {
	return b.store.List(ctx)
}

// Purge permanently deletes entries older than the retention period.
func (b *Bin) Purge(ctx context.Context, now time.Time) (int, error) {
	expired, err := b.store.ListOlderThan(ctx, now.Add(-b.retention))
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, entry := range expired {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		dir := filepath.Dir(entry.RecycledPath)
		if filepath.Base(dir) != entry.ID.String() {
			// Only ever delete the per-entry directory the bin created.
			dir = entry.RecycledPath
		}
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Str("component", "recyclebin").Str("path", entry.RecycledPath).Err(err).Msg("purge failed")
			continue
		}
		if err := b.store.Delete(ctx, entry.ID); err != nil {
			return purged, err
		}
		purged++
	}
	if purged > 0 {
		log.Info().Str("component", "recyclebin").Int("purged", purged).Msg("recycle bin purged")
	}
	return purged, nil
}
