package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRows(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	rows := parseRows([]string{
		"[SubsPlease] Sousou no Frieren - 05 (1080p) [ABCD1234].mkv",
		"cover.jpg",
	})
	require.Len(rows, 2)
	require.Equal("Sousou no Frieren", rows[0][1])
	require.Equal("5", rows[0][2])
	require.Equal("SubsPlease", rows[0][4])
	require.Equal("WEB 1080p", rows[0][5])
	require.Equal("unparsed", rows[1][6])
}

func TestParseCommandRendersTable(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"parse", "[Erai-raws] Kaguya-sama - 12.5 [720p].mkv"})
	require.NoError(cmd.Execute())
	require.Contains(out.String(), "Kaguya-sama")
	require.Contains(out.String(), "12.5")
	require.True(strings.Contains(out.String(), "Strategy") || strings.Contains(out.String(), "STRATEGY"))
}

func TestRenameRejectsBadID(t *testing.T) {
	t.Parallel()
	cmd := newRootCommand()
	cmd.SetArgs([]string{"rename", "abc"})
	cmd.SetOut(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}
