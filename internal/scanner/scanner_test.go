package scanner

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/db"
	"github.com/JustinTDCT/AnimeVault/internal/events"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/repository"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Message
}

func (r *recorder) Publish(event string, data interface{}) {
	r.mu.Lock()
	r.events = append(r.events, events.Message{Event: event, Data: data})
	r.mu.Unlock()
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

type fixture struct {
	anime    *repository.AnimeRepository
	episodes *repository.EpisodeRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	database, err := db.Connect("sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))
	return fixture{
		anime:    repository.NewAnimeRepository(database.DB),
		episodes: repository.NewEpisodeRepository(database.DB),
	}
}

func (f fixture) seed(t *testing.T, id int, title string) {
	t.Helper()
	require.NoError(t, f.anime.Upsert(context.Background(), &models.Anime{ID: id, TitleRomaji: title, Monitored: true}))
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

type fakeProber struct{}

func (fakeProber) Probe(ctx context.Context, path string) (*models.MediaInfo, error) {
	return &models.MediaInfo{Resolution: "1080p", VideoCodec: "h264", DurationSeconds: 1420}, nil
}

// ============================================================
// Discovery
// ============================================================

func TestDiscoveryStateSingleScan(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	s := NewDiscoveryState()
	require.True(s.TryBegin())
	require.False(s.TryBegin())
	require.True(s.Running())
	s.put(models.UnmappedFolder{Path: "/lib/b", Name: "b"})
	s.put(models.UnmappedFolder{Path: "/lib/a", Name: "a"})
	s.Finish()
	require.False(s.Running())
	require.False(s.LastScan().IsZero())

	snap := s.Snapshot()
	require.Len(snap, 2)
	require.Equal("a", snap[0].Name)
	s.Remove("/lib/a")
	require.Len(s.Snapshot(), 1)
}

type fakeSearcher map[string][]*models.Anime

func (f fakeSearcher) Search(ctx context.Context, q string) ([]*models.Anime, error) {
	return f[q], nil
}

func (f fakeSearcher) GetByID(ctx context.Context, id int) (*models.Anime, error) {
	return nil, apperr.ErrNotFound
}

func TestDiscoveryScan(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t)
	fx.seed(t, 1, "Sousou no Frieren")
	fx.seed(t, 2, "Kage no Jitsuryokusha ni Naritakute")

	root := t.TempDir()
	for _, dir := range []string{
		"[Group] Sousou no Frieren (2023)",
		"The Eminence in Shadow",
		"Dungeon Meshi",
		"Specials",
		".cache",
	} {
		require.NoError(os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	touch(t, filepath.Join(root, "loose file.mkv"))

	search := fakeSearcher{
		"The Eminence in Shadow": {{ID: 2, TitleRomaji: "Kage no Jitsuryokusha ni Naritakute"}},
		"Dungeon Meshi":          {{ID: 99, TitleRomaji: "Dungeon Meshi", Format: "TV"}},
	}
	rec := &recorder{}
	d := NewDiscovery(root, fx.anime, search, 0, NewDiscoveryState(), rec)

	ran, err := d.Scan(ctx)
	require.NoError(err)
	require.True(ran)

	unmapped := d.State().Snapshot()
	require.Len(unmapped, 1)
	require.Equal("Dungeon Meshi", unmapped[0].Name)
	require.Equal(99, unmapped[0].Suggestions[0].AnimeID)
	require.Equal(1, rec.count(events.DiscoveryFolder))
	require.Equal(1, rec.count(events.DiscoveryComplete))

	require.True(d.State().TryBegin())
	ran, err = d.Scan(ctx)
	require.NoError(err)
	require.False(ran, "overlapping scan is a no-op")
}

// ============================================================
// File scan
// ============================================================

func TestFileScanImportsAndSkipsKnown(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t)
	fx.seed(t, 1, "Sousou no Frieren")

	root := t.TempDir()
	touch(t, filepath.Join(root, "Frieren", "[SubsPlease] Sousou no Frieren - 01 [1080p].mkv"))
	touch(t, filepath.Join(root, "Frieren", "Season 1", "[SubsPlease] Sousou no Frieren - 02 [1080p].mkv"))
	touch(t, filepath.Join(root, "Frieren", "notes.txt"))
	touch(t, filepath.Join(root, "Dungeon Meshi", "[SubsPlease] Dungeon Meshi - 01 [1080p].mkv"))
	touch(t, filepath.Join(root, ".trash", "[SubsPlease] Sousou no Frieren - 03 [1080p].mkv"))

	rec := &recorder{}
	s := NewFileScanner(fx.anime, fx.episodes, NewImporter(fx.episodes, fakeProber{}, nil), rec)

	result, err := s.Scan(ctx, root)
	require.NoError(err)
	require.Equal(3, result.FilesFound)
	require.Equal(2, result.FilesImported)
	require.Len(result.Unmatched, 1)
	require.Empty(result.Errors)
	require.Equal(1, rec.count(events.ScanStart))
	require.Equal(1, rec.count(events.ScanComplete))

	st, err := fx.episodes.FindStatus(ctx, 1, 2)
	require.NoError(err)
	require.NotNil(st)
	require.Equal(10, *st.QualityID)
	require.Equal("SubsPlease", *st.ReleaseGroup)
	require.Equal("h264", st.MediaInfo.VideoCodec)

	result, err = s.Scan(ctx, root)
	require.NoError(err)
	require.Equal(0, result.FilesImported)
	require.Equal(2, result.FilesSkipped)
}

func TestFileScanProgressBatches(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	fx := newFixture(t)

	root := t.TempDir()
	letters := "abcdefghijklmnopqrstuvwxyz"
	for i := 0; i < 250; i++ {
		name := string(letters[i/26%26]) + string(letters[i%26]) + " extra.mkv"
		touch(t, filepath.Join(root, "clips", name))
	}

	rec := &recorder{}
	s := NewFileScanner(fx.anime, fx.episodes, NewImporter(fx.episodes, nil, nil), rec)
	result, err := s.Scan(context.Background(), root)
	require.NoError(err)
	require.Equal(250, result.FilesFound)
	require.Equal(2, rec.count(events.ScanProgress))
}

func TestFileScanStopsOnCancel(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	fx := newFixture(t)

	root := t.TempDir()
	touch(t, filepath.Join(root, "a", "b extra.mkv"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewFileScanner(fx.anime, fx.episodes, NewImporter(fx.episodes, nil, nil), nil)
	_, err := s.Scan(ctx, root)
	require.ErrorIs(err, context.Canceled)
}

// ============================================================
// Importer
// ============================================================

func TestImporterValidation(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t)
	fx.seed(t, 1, "Frieren")
	imp := NewImporter(fx.episodes, nil, nil)

	err := imp.MarkDownloaded(ctx, models.MarkDownloadedParams{AnimeID: 1, EpisodeNumber: 0, FilePath: "/x.mkv"})
	require.True(errors.Is(err, apperr.ErrValidation))

	for _, ep := range []float64{-1, math.NaN(), math.Inf(1)} {
		err = imp.ImportFile(ctx, 1, ep, "/x.mkv", nil)
		require.True(errors.Is(err, apperr.ErrValidation), "episode %g", ep)
	}

	err = imp.ImportFile(ctx, 1, 1, filepath.Join(t.TempDir(), "missing.mkv"), nil)
	require.True(errors.Is(err, apperr.ErrNotFound))

	path := filepath.Join(t.TempDir(), "Frieren - 04.mkv")
	touch(t, path)
	require.NoError(imp.ImportFile(ctx, 1, 4, path, nil))
	st, err := fx.episodes.FindStatus(ctx, 1, 4)
	require.NoError(err)
	require.Equal(path, *st.FilePath)
	require.Equal(int64(1), *st.FileSize)
}

// ============================================================
// Staleness
// ============================================================

type recordingClearer struct {
	mu    sync.Mutex
	paths []string
}

func (c *recordingClearer) ClearStale(ctx context.Context, animeID int, episode float64, path string) error {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
	return nil
}

func TestEpisodeReaderHealsMissingFiles(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t)
	fx.seed(t, 1, "Frieren")

	dir := t.TempDir()
	present := filepath.Join(dir, "01.mkv")
	touch(t, present)
	missing := filepath.Join(dir, "02.mkv")

	require.NoError(fx.episodes.MarkDownloaded(ctx, models.MarkDownloadedParams{AnimeID: 1, EpisodeNumber: 1, QualityID: 10, FilePath: present}))
	require.NoError(fx.episodes.MarkDownloaded(ctx, models.MarkDownloadedParams{AnimeID: 1, EpisodeNumber: 2, QualityID: 10, FilePath: missing}))
	title := "Three"
	require.NoError(fx.episodes.UpsertEpisodeMetadata(ctx, &models.EpisodeMetadata{AnimeID: 1, Number: 3, Title: &title}))

	rec := &recorder{}
	clearer := &recordingClearer{}
	reader := NewEpisodeReader(fx.episodes, rec)
	reader.SetClearer(clearer)

	views, err := reader.List(ctx, 1)
	require.NoError(err)
	require.Len(views, 3)
	require.True(views[0].Downloaded())
	require.False(views[1].Downloaded(), "missing file reads as not downloaded")
	require.Nil(views[1].QualityID)
	require.Equal("Three", *views[2].Title)
	require.Equal([]string{missing}, clearer.paths)

	require.NoError(reader.ClearStale(ctx, 1, 2, missing))
	st, err := fx.episodes.FindStatus(ctx, 1, 2)
	require.NoError(err)
	require.False(st.Downloaded())
	require.Equal(1, rec.count(events.EpisodeStale))

	require.NoError(reader.ClearStale(ctx, 1, 1, present))
	st, err = fx.episodes.FindStatus(ctx, 1, 1)
	require.NoError(err)
	require.True(st.Downloaded(), "existing file is never cleared")
}
