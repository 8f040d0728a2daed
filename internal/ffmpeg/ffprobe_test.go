package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	raw := []byte(`{
		"format": {"duration": "1420.512000"},
		"streams": [
			{"codec_type": "video", "codec_name": "hevc", "width": 1920, "height": 1036},
			{"codec_type": "audio", "codec_name": "opus"},
			{"codec_type": "audio", "codec_name": "flac"},
			{"codec_type": "subtitle", "codec_name": "ass"},
			{"codec_type": "video", "codec_name": "mjpeg", "width": 300, "height": 300}
		]
	}`)
	info, err := parseProbeOutput(raw)
	require.NoError(err)
	require.Equal("hevc", info.VideoCodec)
	require.Equal("1080p", info.Resolution)
	require.Equal([]string{"opus", "flac"}, info.AudioCodecs)
	require.Equal(1420, info.DurationSeconds)

	_, err = parseProbeOutput([]byte("not json"))
	require.Error(err)
}

func TestResolutionLabel(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tests := []struct {
		w, h     int
		expected string
	}{
		{3840, 2160, "4K"},
		{1920, 800, "1080p"},
		{1280, 720, "720p"},
		{848, 480, "480p"},
		{640, 360, "SD"},
	}
	for _, tc := range tests {
		require.Equal(tc.expected, resolutionLabel(tc.w, tc.h), "%dx%d", tc.w, tc.h)
	}
}
