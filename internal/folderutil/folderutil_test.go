package folderutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsGeneric(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tests := []struct {
		name     string
		expected bool
	}{
		{"Season 1", true},
		{"season02", true},
		{"Seasons", true},
		{"S01", true},
		{"s2", true},
		{"Specials", true},
		{"OVA", true},
		{"ONA", true},
		{"Extras", true},
		{"NC", true},
		{"", true},
		{"Frieren", false},
		{"Sousou no Frieren (2023)", false},
		{"S01E01", false},
	}
	for _, tc := range tests {
		require.Equal(tc.expected, IsGeneric(tc.name), "IsGeneric(%q)", tc.name)
	}
}

func TestCleanName(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.Equal("Frieren", CleanName("[SubsPlease] Frieren (2023) [1080p]"))
	require.Equal("Oshi no Ko", CleanName("Oshi_no_Ko"))
	require.True(IsHidden(".stfolder"))
	require.False(IsHidden("Frieren"))
}
