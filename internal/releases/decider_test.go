package releases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/db"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/quality"
	"github.com/JustinTDCT/AnimeVault/internal/repository"
)

type seadex map[string]bool

func (s seadex) IsBest(ctx context.Context, animeID int, group string) (bool, error) {
	return s[strings.ToLower(group)], nil
}

type observer struct {
	parsed  []string
	decided []string
}

func (o *observer) ReleaseParsed(strategy string) { o.parsed = append(o.parsed, strategy) }
func (o *observer) ReleaseDecided(reason string)  { o.decided = append(o.decided, reason) }

type fixture struct {
	decider  *Decider
	episodes *repository.EpisodeRepository
	anime    *repository.AnimeRepository
	obs      *observer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	database, err := db.Connect("sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))

	animeRepo := repository.NewAnimeRepository(database.DB)
	episodes := repository.NewEpisodeRepository(database.DB)
	profiles := repository.NewProfileRepository(database.DB)

	web := &models.QualityProfile{
		Name: "WEB", Cutoff: "WEB 1080p", UpgradeAllowed: true, SeadexPreferred: true,
		AllowedQualities: []string{"WEB 720p", "WEB 1080p"},
	}
	require.NoError(t, profiles.CreateQualityProfile(ctx, web))
	require.NoError(t, animeRepo.Upsert(ctx, &models.Anime{ID: 1, TitleRomaji: "Sousou no Frieren", QualityProfileID: &web.ID, Monitored: true}))
	require.NoError(t, animeRepo.Upsert(ctx, &models.Anime{ID: 2, TitleRomaji: "Unprofiled", Monitored: true}))
	require.NoError(t, profiles.SaveReleaseProfile(ctx, &models.ReleaseProfile{
		Name: "Groups", Enabled: true, Global: true,
		Rules: []models.ReleaseRule{
			{Term: "SubsPlease", Score: 10, RuleType: models.RulePreferred},
			{Term: "Judas", RuleType: models.RuleMustNot},
		},
	}))

	obs := &observer{}
	d := NewDecider(animeRepo, profiles, episodes, seadex{"subsplease": true})
	d.SetObserver(obs)
	return fixture{decider: d, episodes: episodes, anime: animeRepo, obs: obs}
}

func TestDecide(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t)

	tests := []struct {
		name     string
		filename string
		accepted bool
		reason   quality.Reason
		rule     string
	}{
		{"preferred seadex release", "[SubsPlease] Frieren - 01 [1080p].mkv", true, quality.ReasonAccepted, ""},
		{"bluray outside web profile", "[Group] Frieren - 01 [BD 1080p].mkv", false, quality.ReasonQualityNotAllowed, ""},
		{"blocked group", "[Judas] Frieren - 01 [1080p].mkv", false, quality.ReasonMustNotMatched, "Judas"},
	}
	for _, tc := range tests {
		ev, err := fx.decider.Decide(ctx, Request{AnimeID: 1, Filename: tc.filename})
		require.NoError(err, tc.name)
		require.Equal(tc.accepted, ev.Decision.Accepted, tc.name)
		require.Equal(tc.reason, ev.Decision.Reason, tc.name)
		require.Equal(tc.rule, ev.Decision.Rule, tc.name)
		require.Equal("WEB", ev.Profile)
	}

	ev, err := fx.decider.Decide(ctx, Request{AnimeID: 1, Filename: "[SubsPlease] Frieren - 01 [1080p].mkv"})
	require.NoError(err)
	require.True(ev.IsSeadex)
	require.Equal(int64(2*quality.QualityWeight+10+quality.SeadexBonus), ev.Decision.Score)
	require.Contains(fx.obs.parsed, "bracket_dash")
	require.Contains(fx.obs.decided, string(quality.ReasonMustNotMatched))
}

func TestDecideRequiresUpgradeForDownloadedEpisode(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t)

	require.NoError(fx.episodes.MarkDownloaded(ctx, models.MarkDownloadedParams{
		AnimeID: 1, EpisodeNumber: 1, QualityID: 6, FilePath: "/anime/Frieren/01.mkv",
	}))
	ev, err := fx.decider.Decide(ctx, Request{AnimeID: 1, Filename: "[SubsPlease] Frieren - 01 [1080p].mkv"})
	require.NoError(err)
	require.True(ev.Decision.Accepted, "720p to 1080p is an upgrade")

	require.NoError(fx.episodes.MarkDownloaded(ctx, models.MarkDownloadedParams{
		AnimeID: 1, EpisodeNumber: 1, QualityID: 10, FilePath: "/anime/Frieren/01.mkv",
	}))
	ev, err = fx.decider.Decide(ctx, Request{AnimeID: 1, Filename: "[SubsPlease] Frieren - 01 [1080p].mkv"})
	require.NoError(err)
	require.False(ev.Decision.Accepted)
	require.Equal(quality.ReasonNoUpgrade, ev.Decision.Reason)
}

func TestDecideErrors(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.decider.Decide(ctx, Request{AnimeID: 1, Filename: "  "})
	require.True(errors.Is(err, apperr.ErrValidation))

	_, err = fx.decider.Decide(ctx, Request{AnimeID: 99, Filename: "[SubsPlease] Frieren - 01 [1080p].mkv"})
	require.True(errors.Is(err, apperr.ErrNotFound))

	_, err = fx.decider.Decide(ctx, Request{AnimeID: 2, Filename: "[SubsPlease] Frieren - 01 [1080p].mkv"})
	require.True(errors.Is(err, apperr.ErrValidation), "no profile and no default")
}
