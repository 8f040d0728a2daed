package recyclebin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/db"
	"github.com/JustinTDCT/AnimeVault/internal/fileops"
	"github.com/JustinTDCT/AnimeVault/internal/repository"
	"github.com/stretchr/testify/require"
)

func newBin(t *testing.T, retentionDays int) (*Bin, string) {
	t.Helper()
	database, err := db.Connect("sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))

	root := filepath.Join(t.TempDir(), ".recycle")
	return New(root, retentionDays, repository.NewRecycleBinRepository(database.DB)), root
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("episode"), 0o644))
}

func TestRecycleAndRestore(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	bin, root := newBin(t, 7)

	path := filepath.Join(t.TempDir(), "Frieren", "01.mkv")
	writeFile(t, path)
	animeID, ep := 1, 1.0

	entry, err := bin.Recycle(ctx, path, &animeID, &ep)
	require.NoError(err)
	require.False(fileops.Exists(path))
	require.True(fileops.Exists(entry.RecycledPath))
	require.Equal(filepath.Join(root, entry.ID.String(), "01.mkv"), entry.RecycledPath)
	require.Equal(int64(len("episode")), entry.Size)

	list, err := bin.List(ctx)
	require.NoError(err)
	require.Len(list, 1)

	writeFile(t, path)
	_, err = bin.Restore(ctx, entry.ID)
	require.True(errors.Is(err, apperr.ErrValidation), "occupied original")
	require.NoError(os.Remove(path))

	_, err = bin.Restore(ctx, entry.ID)
	require.NoError(err)
	require.True(fileops.Exists(path))
	list, err = bin.List(ctx)
	require.NoError(err)
	require.Empty(list)

	_, err = bin.Recycle(ctx, filepath.Join(t.TempDir(), "missing.mkv"), nil, nil)
	require.True(errors.Is(err, apperr.ErrNotFound))
}

func TestPurgeHonoursRetention(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	bin, _ := newBin(t, 7)

	path := filepath.Join(t.TempDir(), "a.mkv")
	writeFile(t, path)
	entry, err := bin.Recycle(ctx, path, nil, nil)
	require.NoError(err)

	n, err := bin.Purge(ctx, time.Now().Add(24*time.Hour))
	require.NoError(err)
	require.Zero(n, "inside retention")

	n, err = bin.Purge(ctx, time.Now().Add(8*24*time.Hour))
	require.NoError(err)
	require.Equal(1, n)
	require.False(fileops.Exists(entry.RecycledPath))
	require.False(fileops.Exists(filepath.Dir(entry.RecycledPath)))
}
