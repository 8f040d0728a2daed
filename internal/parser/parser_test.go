package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

// ============================================================
// Cascade Tests
// ============================================================

func TestParseCascade(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tests := []struct {
		name       string
		strategy   string
		title      string
		episode    float64
		season     *int
		group      string
		resolution string
		source     string
	}{
		{"[SubsPlease] Frieren - 01 [1080p].mkv", "bracket_dash", "Frieren", 1, nil, "SubsPlease", "1080p", ""},
		{"[Group] Re Zero II - 10 [1080p].mkv", "bracket_dash", "Re Zero II", 10, intp(2), "Group", "1080p", ""},
		{"[SubsPlease] Kaguya-sama - Love is War - 12.5 (720p) [ABCD1234].mkv", "bracket_dash", "Kaguya-sama - Love is War", 12.5, nil, "SubsPlease", "720p", ""},
		{"[SubsPlease] Kimetsu no Yaiba S03E05 [1080p].mkv", "bracket_season_episode", "Kimetsu no Yaiba", 5, intp(3), "SubsPlease", "1080p", ""},
		{"Spy x Family - S02E03 - Episode Title [1080p].mkv", "plain_season_episode", "Spy x Family", 3, intp(2), "", "1080p", ""},
		{"Frieren (2023) - S01E05 - Phantoms of the Dead [WEBDL-1080p].mkv", "plex", "Frieren", 5, intp(1), "", "1080p", "WEB"},
		{"Sousou.no.Frieren.S01E10.1080p.WEB.H264-VARYG.mkv", "dot_scene", "Sousou no Frieren", 10, intp(1), "VARYG", "1080p", "WEB"},
		{"Frieren - 05 (1080p) [Judas].mkv", "trailing_group", "Frieren", 5, nil, "Judas", "1080p", ""},
		{"Frieren - 05 (1080p) [CR-Subs].mkv", "trailing_group", "Frieren", 5, nil, "CR-Subs", "1080p", ""},
		{"Frieren - 05 [1080p].mkv", "fallback", "Frieren", 5, nil, "", "1080p", ""},
		{"Frieren Episode 12.mkv", "fallback", "Frieren", 12, nil, "", "", ""},
		{"[Anon] Mob_Psycho_Ep07_BluRay.mkv", "fallback", "Mob Psycho", 7, nil, "Anon", "", "BD"},
	}

	for _, tc := range tests {
		rel, ok := Parse(tc.name)
		require.True(ok, "Parse(%q)", tc.name)
		require.Equal(tc.strategy, rel.Strategy, "strategy for %q", tc.name)
		require.Equal(tc.title, rel.Title, "title for %q", tc.name)
		require.InDelta(tc.episode, rel.EpisodeNumber, 0.0001, "episode for %q", tc.name)
		require.Equal(tc.season, rel.Season, "season for %q", tc.name)
		require.Equal(tc.group, rel.Group, "group for %q", tc.name)
		require.Equal(tc.resolution, rel.Resolution, "resolution for %q", tc.name)
		require.Equal(tc.source, rel.Source, "source for %q", tc.name)
		require.Equal(tc.name, rel.OriginalFilename)
	}
}

func TestParseVersion(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	rel, ok := Parse("[Erai-raws] Oshi no Ko - 05v2 [1080p].mkv")
	require.True(ok)
	require.Equal("Oshi no Ko", rel.Title)
	require.Equal(5.0, rel.EpisodeNumber)
	require.NotNil(rel.Version)
	require.Equal(2, *rel.Version)
	require.True(rel.IsRevised())

	rel, ok = Parse("[SubsPlease] Frieren - 01 [1080p].mkv")
	require.True(ok)
	require.Nil(rel.Version)
	require.False(rel.IsRevised())
	require.Equal(1, rel.SeasonOrDefault())
}

func TestParseFallbackSkipsYearsAndResolutions(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	rel, ok := Parse("Show_Name_1080_12.mkv")
	require.True(ok)
	require.Equal(12.0, rel.EpisodeNumber)

	rel, ok = Parse("Show 2019 - 1080 - 04.mkv")
	require.True(ok)
	require.Equal(4.0, rel.EpisodeNumber)

	for _, name := range []string{
		"Movie Title 2019.mkv",
		"Some Show 1080p.mkv",
		"Show - 2021.mkv",
		"Concert (2160).mkv",
	} {
		rel, ok := Parse(name)
		require.False(ok, "Parse(%q) returned %+v", name, rel)
	}
}

func TestParseRejectsNonReleases(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	for _, name := range []string{"", "   ", "readme.txt", "cover.jpg", "[Group].mkv"} {
		_, ok := Parse(name)
		require.False(ok, "Parse(%q)", name)
	}
}

func TestStrategiesOrder(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	var names []string
	for _, s := range Strategies() {
		names = append(names, s.Name())
	}
	require.Equal([]string{
		"bracket_dash",
		"bracket_season_episode",
		"plain_season_episode",
		"plex",
		"dot_scene",
		"trailing_group",
		"fallback",
	}, names)
}

func TestStrategiesInIsolation(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	_, ok := plainSeasonEpisode{}.Parse("Frieren (2023) - S01E05 - Title")
	require.False(ok, "year-suffixed titles belong to the plex strategy")

	_, ok = trailingGroup{}.Parse("Frieren - 05 [1080p]")
	require.False(ok, "metadata is not a group")

	rel, ok := ParseWith([]Strategy{fallback{}}, "[SubsPlease] Frieren - 01 [1080p].mkv")
	require.True(ok)
	require.Equal("Frieren", rel.Title)
	require.Equal("SubsPlease", rel.Group)
	require.Equal("fallback", rel.Strategy)
}

// ============================================================
// Tag Extraction Tests
// ============================================================

func TestExtractResolution(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tests := []struct {
		text     string
		expected string
	}{
		{"[1080p]", "1080p"},
		{"(1080P)", "1080p"},
		{"Show_720p_x264", "720p"},
		{"[4k HDR]", "4K"},
		{"[2160p]", "2160p"},
		{"576p", "576p"},
		{"1920x1080", ""},
		{"no tags", ""},
	}
	for _, tc := range tests {
		require.Equal(tc.expected, ExtractResolution(tc.text), "ExtractResolution(%q)", tc.text)
	}
}

func TestExtractSource(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tests := []struct {
		text     string
		expected string
	}{
		{"[Blu-Ray 1080p]", "BD"},
		{"BluRay", "BD"},
		{"[BD 1080p]", "BD"},
		{"WEB-DL", "WEB"},
		{"[AMZN WEB-DL 1080p]", "WEB"},
		{"WEBRip", "WEBRIP"},
		{"[CR 1080p]", "CR"},
		{"bdrip", "bdrip"},
		{"HDTV", "HDTV"},
		{"[1080p]", ""},
	}
	for _, tc := range tests {
		require.Equal(tc.expected, ExtractSource(tc.text), "ExtractSource(%q)", tc.text)
	}
}

func TestExtractGroup(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tests := []struct {
		rest     string
		expected string
	}{
		{" - Episode Title [1080p][Judas]", "Judas"},
		{".1080p.WEB-DL.x264-GROUP", "GROUP"},
		{".1080p.WEB-DL", ""},
		{"[ABCD1234]", ""},
		{"-x265", ""},
		{" - Episode Title", ""},
		{"-VARYG.mkv", "VARYG"},
	}
	for _, tc := range tests {
		require.Equal(tc.expected, ExtractGroup(tc.rest), "ExtractGroup(%q)", tc.rest)
	}
}

func TestIsMetadata(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	for _, tok := range []string{"1080p", "HEVC", "x264", "10bit", "AAC", "FLAC", "H.264", "REMUX", "WEB", "ABCD1234", "DV",
		"HEVC x265 10bit", "WEB-DL", "Blu-ray 1080p", "x264-FLAC", "1080p AAC"} {
		require.True(IsMetadata(tok), "IsMetadata(%q)", tok)
	}
	for _, tok := range []string{"SubsPlease", "Erai-raws", "Judas", "VARYG",
		"CR-Subs", "HDR-Team", "NF-Raws", "DV Subs", "DVDGroup"} {
		require.False(IsMetadata(tok), "IsMetadata(%q)", tok)
	}
}

func TestIsVideoFile(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.True(IsVideoFile("Show/Season 01/ep.mkv"))
	require.True(IsVideoFile("ep.MP4"))
	require.False(IsVideoFile("ep.srt"))
	require.False(IsVideoFile("ep"))
}
