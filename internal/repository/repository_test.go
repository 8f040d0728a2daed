package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/db"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Connect("sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))
	return database
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func seedAnime(t *testing.T, repo *AnimeRepository, id int, title string) *models.Anime {
	t.Helper()
	a := &models.Anime{ID: id, TitleRomaji: title, Format: "TV", Monitored: true}
	require.NoError(t, repo.Upsert(context.Background(), a))
	return a
}

// ============================================================
// Anime
// ============================================================

func TestAnimeUpsertKeepsPath(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	repo := NewAnimeRepository(openTestDB(t).DB)

	a := &models.Anime{ID: 154587, TitleRomaji: "Sousou no Frieren", Format: "TV",
		EpisodeCount: intPtr(28), Path: strPtr("/library/Frieren"), Monitored: true}
	require.NoError(repo.Upsert(ctx, a))

	a.Path = nil
	a.TitleEnglish = strPtr("Frieren: Beyond Journey's End")
	require.NoError(repo.Upsert(ctx, a))

	got, err := repo.GetByID(ctx, 154587)
	require.NoError(err)
	require.Equal("/library/Frieren", *got.Path)
	require.Equal("Frieren: Beyond Journey's End", *got.TitleEnglish)
	require.Equal(28, *got.EpisodeCount)
	require.True(got.Monitored)
}

func TestAnimeNotFound(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	repo := NewAnimeRepository(openTestDB(t).DB)

	_, err := repo.GetByID(ctx, 1)
	require.True(errors.Is(err, apperr.ErrNotFound))
	require.True(errors.Is(repo.UpdatePath(ctx, 1, "/x"), apperr.ErrNotFound))
}

func TestAnimeListMonitored(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	repo := NewAnimeRepository(openTestDB(t).DB)

	seedAnime(t, repo, 1, "B Show")
	seedAnime(t, repo, 2, "A Show")
	require.NoError(repo.SetMonitored(ctx, 1, false))

	all, err := repo.List(ctx)
	require.NoError(err)
	require.Len(all, 2)
	require.Equal("A Show", all[0].TitleRomaji)

	monitored, err := repo.ListMonitored(ctx)
	require.NoError(err)
	require.Len(monitored, 1)
	require.Equal(2, monitored[0].ID)
}

// ============================================================
// Episodes
// ============================================================

func TestMarkDownloadedAndClear(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	database := openTestDB(t)
	seedAnime(t, NewAnimeRepository(database.DB), 1, "Frieren")
	repo := NewEpisodeRepository(database.DB)

	status, err := repo.FindStatus(ctx, 1, 3)
	require.NoError(err)
	require.Nil(status)

	require.NoError(repo.MarkDownloaded(ctx, models.MarkDownloadedParams{
		AnimeID: 1, EpisodeNumber: 3, QualityID: 10, ReleaseGroup: "SubsPlease",
		FilePath: "/library/Frieren/03.mkv", FileSize: 1 << 30,
		MediaInfo: &models.MediaInfo{Resolution: "1080p", VideoCodec: "hevc"},
	}))

	status, err = repo.FindStatus(ctx, 1, 3)
	require.NoError(err)
	require.NotNil(status)
	require.True(status.Downloaded())
	require.Equal(1, status.Season)
	require.Equal(10, *status.QualityID)
	require.Equal("SubsPlease", *status.ReleaseGroup)
	require.Equal("hevc", status.MediaInfo.VideoCodec)
	require.NotNil(status.DownloadedAt)

	cleared, err := repo.ClearDownloadIfPath(ctx, 1, 3, "/library/Frieren/other.mkv")
	require.NoError(err)
	require.False(cleared, "path changed since the check")

	cleared, err = repo.ClearDownloadIfPath(ctx, 1, 3, "/library/Frieren/03.mkv")
	require.NoError(err)
	require.True(cleared)

	status, err = repo.FindStatus(ctx, 1, 3)
	require.NoError(err)
	require.False(status.Downloaded())
	require.Nil(status.QualityID)
	require.Nil(status.MediaInfo)
}

func TestListDownloadedAndUpdatePath(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	database := openTestDB(t)
	seedAnime(t, NewAnimeRepository(database.DB), 1, "Frieren")
	repo := NewEpisodeRepository(database.DB)

	for _, ep := range []float64{2, 1, 12.5} {
		require.NoError(repo.MarkDownloaded(ctx, models.MarkDownloadedParams{
			AnimeID: 1, EpisodeNumber: ep, QualityID: 10, FilePath: "/in/x.mkv",
		}))
	}
	cleared, err := repo.ClearDownloadIfPath(ctx, 1, 2, "/in/x.mkv")
	require.NoError(err)
	require.True(cleared)

	downloaded, err := repo.ListDownloaded(ctx, 1)
	require.NoError(err)
	require.Len(downloaded, 2)
	require.Equal(1.0, downloaded[0].EpisodeNumber)
	require.Equal(12.5, downloaded[1].EpisodeNumber)

	all, err := repo.ListStatuses(ctx, 1)
	require.NoError(err)
	require.Len(all, 3)

	require.NoError(repo.UpdateFilePath(ctx, 1, 12.5, "/library/Frieren/12.5.mkv"))
	require.True(errors.Is(repo.UpdateFilePath(ctx, 1, 99, "/x"), apperr.ErrNotFound))
}

func TestEpisodeMetadataProvenance(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	database := openTestDB(t)
	seedAnime(t, NewAnimeRepository(database.DB), 1, "Frieren")
	repo := NewEpisodeRepository(database.DB)

	kitsu := models.SourceKitsu
	aired := time.Date(2023, 9, 29, 0, 0, 0, 0, time.UTC)
	require.NoError(repo.UpsertEpisodeMetadata(ctx, &models.EpisodeMetadata{
		AnimeID: 1, Number: 1, Title: strPtr("The Journey's End"), TitleSource: &kitsu,
		Aired: &aired, AiredSource: &kitsu,
	}))

	list, err := repo.ListEpisodeMetadata(ctx, 1)
	require.NoError(err)
	require.Len(list, 1)
	require.Equal("The Journey's End", *list[0].Title)
	require.Equal(models.SourceKitsu, *list[0].TitleSource)
	require.Nil(list[0].TitleJapanese)
	require.Nil(list[0].TitleJapaneseSource)
	require.True(aired.Equal(*list[0].Aired))
}

// ============================================================
// Profiles
// ============================================================

func TestQualityProfileCRUD(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	repo := NewProfileRepository(openTestDB(t).DB)

	maxSize := int64(4 << 30)
	p := &models.QualityProfile{Name: "HD", Cutoff: "BD 1080p", UpgradeAllowed: true,
		AllowedQualities: []string{"WEB 1080p", "BD 1080p"}, MaxSize: &maxSize}
	require.NoError(repo.CreateQualityProfile(ctx, p))
	require.NotEqual(uuid.Nil, p.ID)

	got, err := repo.GetQualityProfileByName(ctx, "HD")
	require.NoError(err)
	require.Equal(p.AllowedQualities, got.AllowedQualities)
	require.Equal(maxSize, *got.MaxSize)
	require.Nil(got.MinSize)

	got.Cutoff = "WEB 1080p"
	require.NoError(repo.UpdateQualityProfile(ctx, got))
	got, err = repo.GetQualityProfile(ctx, p.ID)
	require.NoError(err)
	require.Equal("WEB 1080p", got.Cutoff)

	require.NoError(repo.DeleteQualityProfile(ctx, p.ID))
	_, err = repo.GetQualityProfile(ctx, p.ID)
	require.True(errors.Is(err, apperr.ErrNotFound))
}

func TestReleaseProfilesForAnime(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	database := openTestDB(t)
	animeRepo := NewAnimeRepository(database.DB)
	seedAnime(t, animeRepo, 1, "Frieren")
	seedAnime(t, animeRepo, 2, "Oshi no Ko")
	repo := NewProfileRepository(database.DB)

	global := &models.ReleaseProfile{Name: "Global", Enabled: true, Global: true, Rules: []models.ReleaseRule{
		{Term: "SubsPlease", Score: 50, RuleType: models.RulePreferred},
		{Term: "HorribleSubs", RuleType: models.RuleMustNot},
	}}
	linked := &models.ReleaseProfile{Name: "Frieren only", Enabled: true, AnimeIDs: []int{1},
		Rules: []models.ReleaseRule{{Term: "Dual-Audio", RuleType: models.RuleMust}}}
	disabled := &models.ReleaseProfile{Name: "Off", Enabled: false, Global: true}
	for _, p := range []*models.ReleaseProfile{global, linked, disabled} {
		require.NoError(repo.SaveReleaseProfile(ctx, p))
	}

	forFrieren, err := repo.ListReleaseProfilesForAnime(ctx, 1)
	require.NoError(err)
	require.Len(forFrieren, 2)
	require.Equal("Frieren only", forFrieren[0].Name)
	require.Equal([]int{1}, forFrieren[0].AnimeIDs)
	require.Equal(global.Rules, forFrieren[1].Rules)

	forOshi, err := repo.ListReleaseProfilesForAnime(ctx, 2)
	require.NoError(err)
	require.Len(forOshi, 1)
	require.Equal("Global", forOshi[0].Name)

	global.Rules = global.Rules[:1]
	require.NoError(repo.SaveReleaseProfile(ctx, global))
	got, err := repo.GetReleaseProfile(ctx, global.ID)
	require.NoError(err)
	require.Len(got.Rules, 1)

	bad := &models.ReleaseProfile{Name: "Bad", Rules: []models.ReleaseRule{{Term: "x", RuleType: "maybe"}}}
	require.True(errors.Is(repo.SaveReleaseProfile(ctx, bad), apperr.ErrValidation))
	all, err := repo.ListReleaseProfiles(ctx)
	require.NoError(err)
	require.Len(all, 3, "a rejected profile is rolled back")
}

// ============================================================
// Recycle Bin and Settings
// ============================================================

func TestRecycleBinListOlderThan(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	repo := NewRecycleBinRepository(openTestDB(t).DB)

	now := time.Now().UTC()
	old := &models.RecycledFile{OriginalPath: "/a.mkv", RecycledPath: "/bin/a.mkv", DeletedAt: now.AddDate(0, 0, -10)}
	fresh := &models.RecycledFile{OriginalPath: "/b.mkv", RecycledPath: "/bin/b.mkv", DeletedAt: now}
	require.NoError(repo.Insert(ctx, old))
	require.NoError(repo.Insert(ctx, fresh))

	expired, err := repo.ListOlderThan(ctx, now.AddDate(0, 0, -7))
	require.NoError(err)
	require.Len(expired, 1)
	require.Equal(old.ID, expired[0].ID)

	require.NoError(repo.Delete(ctx, old.ID))
	_, err = repo.Get(ctx, old.ID)
	require.True(errors.Is(err, apperr.ErrNotFound))
}

func TestSettings(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	repo := NewSettingsRepository(openTestDB(t).DB)

	v, err := repo.Get(ctx, "naming_pattern")
	require.NoError(err)
	require.Empty(v)

	require.NoError(repo.Set(ctx, "naming_pattern", "{Series Title} - {Episode:00}"))
	require.NoError(repo.Set(ctx, "naming_pattern", "{Series Title} - S{Season:00}E{Episode:00}"))
	v, err = repo.Get(ctx, "naming_pattern")
	require.NoError(err)
	require.Equal("{Series Title} - S{Season:00}E{Episode:00}", v)

	all, err := repo.GetAll(ctx)
	require.NoError(err)
	require.Len(all, 1)

	require.NoError(repo.Delete(ctx, "naming_pattern"))
	v, _ = repo.Get(ctx, "naming_pattern")
	require.Empty(v)
}
