package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanTitle(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tests := []struct {
		in       string
		expected string
	}{
		{"  Frieren  - ", "Frieren"},
		{"Show_Name__2", "Show Name 2"},
		{"Title (2020)", "Title"},
		{"Title (2020) (2021)", "Title"},
		{"Title (2020) -", "Title"},
		{"Re:Zero", "Re:Zero"},
		{"86 - Eighty Six", "86 - Eighty Six"},
		{"__", ""},
	}
	for _, tc := range tests {
		got := CleanTitle(tc.in)
		require.Equal(tc.expected, got, "CleanTitle(%q)", tc.in)
		require.Equal(got, CleanTitle(got), "CleanTitle not idempotent for %q", tc.in)
	}
}

func TestDetectSeasonFromTitle(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tests := []struct {
		title    string
		expected *int
	}{
		{"Mushoku Tensei Season 2", intp(2)},
		{"Mushoku Tensei S2", intp(2)},
		{"Kimetsu no Yaiba 3rd Season", intp(3)},
		{"Shingeki no Kyojin Part II", intp(2)},
		{"Vinland Saga Part 3", intp(3)},
		{"Dr. Stone Cour 2", intp(2)},
		{"Re Zero II", intp(2)},
		{"Overlord IV", intp(4)},
		{"Frieren", nil},
		{"Kaguya-sama - Love is War", nil},
	}
	for _, tc := range tests {
		require.Equal(tc.expected, DetectSeasonFromTitle(tc.title), "DetectSeasonFromTitle(%q)", tc.title)
	}
}

func TestNormalizeForMatching(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tests := []struct {
		in       string
		expected string
	}{
		{"Re:Zero kara Hajimeru Isekai Seikatsu 2nd Season", "re zero kara hajimeru isekai seikatsu"},
		{"Kaguya-sama: Love Is War Season 3", "kaguya sama love is war"},
		{"Pokémon", "pokemon"},
		{"Frieren (2023)", "frieren"},
		{"Overlord IV", "overlord"},
		{"Attack on Titan Final Season Part 2", "attack on titan final season"},
		{"Don't Toy with Me, Miss Nagatoro!", "dont toy with me miss nagatoro"},
		{"  ", ""},
	}
	for _, tc := range tests {
		got := NormalizeForMatching(tc.in)
		require.Equal(tc.expected, got, "NormalizeForMatching(%q)", tc.in)
		require.Equal(got, NormalizeForMatching(got), "not stable for %q", tc.in)
	}
}

func TestMatchKeyKeepsSeasonMarkers(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.Equal(MatchKey("Re:Zero II"), MatchKey("re zero ii"))
	require.NotEqual(MatchKey("Re Zero"), MatchKey("Re Zero II"))
	require.Equal("frieren", MatchKey("FRIEREN"))
}

func TestStripSeasonSuffix(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.Equal("Mushoku Tensei", StripSeasonSuffix("Mushoku Tensei Season 2 Part 2"))
	require.Equal("Bleach", StripSeasonSuffix("Bleach [2022]"))
	require.Equal("Spy x Family", StripSeasonSuffix("Spy x Family Cour 2 -"))
}
