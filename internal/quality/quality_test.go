package quality

import (
	"errors"
	"testing"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/parser"
	"github.com/stretchr/testify/require"
)

func webProfile() models.QualityProfile {
	return models.QualityProfile{
		Name:             "WEB",
		Cutoff:           "WEB 1080p",
		UpgradeAllowed:   true,
		AllowedQualities: []string{"WEB 720p", "WEB 1080p"},
	}
}

func mustParse(t *testing.T, name string) parser.Release {
	t.Helper()
	rel, ok := parser.Parse(name)
	require.True(t, ok, "Parse(%q)", name)
	return rel
}

func candidate(t *testing.T, name string) Candidate {
	rel := mustParse(t, name)
	return Candidate{Release: rel, Quality: Classify(name)}
}

// ============================================================
// Table and Classifier Tests
// ============================================================

func TestTableIsRankOrdered(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	all := All()
	require.Equal(Unknown, all[0])
	for i := 1; i < len(all); i++ {
		require.Greater(all[i].Rank, all[i-1].Rank, "%s must outrank %s", all[i].Name, all[i-1].Name)
	}

	for _, q := range Listed() {
		require.NotEqual(Unknown.ID, q.ID)
	}
	require.Len(Listed(), len(all)-1)
}

func TestClassify(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tests := []struct {
		text     string
		expected string
	}{
		{"[SubsPlease] Frieren - 01 [1080p].mkv", "WEB 1080p"},
		{"Frieren S01E01 1080p BluRay x265", "BD 1080p"},
		{"[Group] Show - 01 [BD 720p]", "BD 720p"},
		{"Show.S01E01.1080p.AMZN.WEB-DL", "WEB 1080p"},
		{"Show.S01E01.720p.WEBRip", "WEBRip 720p"},
		{"Show.S01E01.2160p.WEB", "WEB 2160p"},
		{"Show - 01 [4K]", "WEB 2160p"},
		{"Show - 01 [HDTV 720p]", "HDTV 720p"},
		{"Show - 01 [DVDRip]", "DVD 480p"},
		{"Show - 01 [576p DVDRip]", "DVD 480p"},
		{"Show - 01", "Unknown"},
		{"Show - 01 [BD]", "Unknown"},
	}
	for _, tc := range tests {
		require.Equal(tc.expected, Classify(tc.text).Name, "Classify(%q)", tc.text)
	}
}

func TestFromResolution(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.Equal("WEB 1080p", FromResolution("1080p").Name)
	require.Equal("WEB 2160p", FromResolution("4K").Name)
	require.Equal("WEB 480p", FromResolution("SD").Name)
	require.Equal(Unknown, FromResolution(""))
}

func TestByName(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	q, ok := ByName("web 1080p")
	require.True(ok)
	require.Equal(10, q.ID)
	_, ok = ByName("VHS 240p")
	require.False(ok)
	require.Equal(Unknown, ByID(999))
}

// ============================================================
// Profile Validation Tests
// ============================================================

func TestValidateProfile(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.NoError(ValidateProfile(webProfile()))

	bad := webProfile()
	bad.Cutoff = "BD 1080p"
	require.True(errors.Is(ValidateProfile(bad), apperr.ErrValidation))

	bad = webProfile()
	bad.AllowedQualities = append(bad.AllowedQualities, "VHS 240p")
	require.True(errors.Is(ValidateProfile(bad), apperr.ErrValidation))

	bad = webProfile()
	bad.AllowedQualities = append(bad.AllowedQualities, "Unknown")
	require.Error(ValidateProfile(bad))

	bad = webProfile()
	lo, hi := int64(10), int64(5)
	bad.MinSize, bad.MaxSize = &lo, &hi
	require.Error(ValidateProfile(bad))
}

// ============================================================
// Scorer Tests
// ============================================================

func TestScoreRejectsQualityOutsideProfile(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	c := candidate(t, "[Group] Frieren - 01 [BD 1080p].mkv")
	require.Equal("BD 1080p", c.Quality.Name)

	d := Score(c, webProfile(), nil)
	require.False(d.Accepted)
	require.Equal(ReasonQualityNotAllowed, d.Reason)
}

func TestScoreMustNotOnGroup(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	rules := []models.ReleaseRule{
		{Term: "HorribleSubs", RuleType: models.RuleMustNot},
		{Term: "1080p", Score: 10000, RuleType: models.RulePreferred},
	}
	d := Score(candidate(t, "[HorribleSubs] Frieren - 01 [1080p].mkv"), webProfile(), rules)
	require.False(d.Accepted)
	require.Equal(ReasonMustNotMatched, d.Reason)
	require.Equal("HorribleSubs", d.Rule)
}

func TestScoreMustMissing(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	rules := []models.ReleaseRule{{Term: "multi-subs", RuleType: models.RuleMust}}
	d := Score(candidate(t, "[SubsPlease] Frieren - 01 [1080p].mkv"), webProfile(), rules)
	require.False(d.Accepted)
	require.Equal(ReasonMustMissing, d.Reason)

	d = Score(candidate(t, "[SubsPlease] Frieren - 01 [1080p][Multi-Subs].mkv"), webProfile(), rules)
	require.True(d.Accepted)
}

func TestScoreWeighting(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	profile := webProfile()
	profile.SeadexPreferred = true
	rules := []models.ReleaseRule{
		{Term: "subsplease", Score: 50, RuleType: models.RulePreferred},
		{Term: "hevc", Score: -20, RuleType: models.RulePreferred},
	}

	low := Score(candidate(t, "[Other] Frieren - 01 [720p].mkv"), profile, rules)
	require.True(low.Accepted)
	require.Equal(int64(QualityWeight), low.Score)

	high := Score(candidate(t, "[SubsPlease] Frieren - 01 [1080p HEVC].mkv"), profile, rules)
	require.Equal(int64(2*QualityWeight+50-20), high.Score)

	c := candidate(t, "[Other] Frieren - 01 [1080p].mkv")
	c.IsSeadex = true
	require.Equal(int64(2*QualityWeight+SeadexBonus), Score(c, profile, rules).Score)

	profile.SeadexPreferred = false
	require.Equal(int64(2*QualityWeight), Score(c, profile, rules).Score)
}

func TestScoreSizeBounds(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	profile := webProfile()
	lo, hi := int64(100), int64(1000)
	profile.MinSize, profile.MaxSize = &lo, &hi

	c := candidate(t, "[SubsPlease] Frieren - 01 [1080p].mkv")
	c.Size = 5000
	require.Equal(ReasonSizeOutOfRange, Score(c, profile, nil).Reason)
	c.Size = 500
	require.True(Score(c, profile, nil).Accepted)
	c.Size = 0
	require.True(Score(c, profile, nil).Accepted, "unknown size is not gated")
}

// ============================================================
// Upgrade Tests
// ============================================================

func TestCheckUpgrade(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	web720, _ := ByName("WEB 720p")
	web1080, _ := ByName("WEB 1080p")
	bd1080, _ := ByName("BD 1080p")

	profile := models.QualityProfile{
		Name:             "Any",
		Cutoff:           "WEB 1080p",
		UpgradeAllowed:   true,
		AllowedQualities: []string{"WEB 720p", "WEB 1080p", "BD 1080p"},
	}

	require.True(CheckUpgrade(profile, web720, web1080, 0, 0).Accepted)

	d := CheckUpgrade(profile, web1080, bd1080, 0, 0)
	require.False(d.Accepted, "existing quality already at cutoff")
	require.Equal(ReasonNoUpgrade, d.Reason)

	d = CheckUpgrade(profile, web720, bd1080, 0, 0)
	require.False(d.Accepted, "candidate above cutoff")

	d = CheckUpgrade(profile, web1080, web720, 0, 0)
	require.False(d.Accepted, "downgrade")

	profile.UpgradeAllowed = false
	require.False(CheckUpgrade(profile, web720, web1080, 0, 0).Accepted)
}

func TestDecideWithExistingFile(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	path := "/library/Frieren/ep01.mkv"
	existingID := 10 // WEB 1080p
	existing := &models.EpisodeStatus{FilePath: &path, QualityID: &existingID}

	d := Decide(candidate(t, "[SubsPlease] Frieren - 01 [1080p].mkv"), webProfile(), nil, existing)
	require.False(d.Accepted)
	require.Equal(ReasonNoUpgrade, d.Reason)

	lowerID := 6 // WEB 720p
	existing.QualityID = &lowerID
	d = Decide(candidate(t, "[SubsPlease] Frieren - 01 [1080p].mkv"), webProfile(), nil, existing)
	require.True(d.Accepted)
	require.Equal(int64(2*QualityWeight), d.Score)

	d = Decide(candidate(t, "[SubsPlease] Frieren - 01 [1080p].mkv"), webProfile(), nil, &models.EpisodeStatus{})
	require.True(d.Accepted, "no file on record")
}

func TestEnabledRules(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	rules := EnabledRules([]models.ReleaseProfile{
		{Enabled: true, Rules: []models.ReleaseRule{{Term: "a"}}},
		{Enabled: false, Rules: []models.ReleaseRule{{Term: "b"}}},
		{Enabled: true, Rules: []models.ReleaseRule{{Term: "c"}}},
	})
	require.Equal([]models.ReleaseRule{{Term: "a"}, {Term: "c"}}, rules)
}
