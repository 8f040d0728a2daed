package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/JustinTDCT/AnimeVault/internal/models"
)

// Prober extracts media info from a video file.
type Prober interface {
	Probe(ctx context.Context, filePath string) (*models.MediaInfo, error)
}

type FFprobe struct{ Path string }

type probeOutput struct {
	Format  formatInfo   `json:"format"`
	Streams []streamInfo `json:"streams"`
}

type formatInfo struct {
	Duration string `json:"duration"`
}

type streamInfo struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

func NewFFprobe(path string) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFprobe{Path: path}
}

func (f *FFprobe) Probe(ctx context.Context, filePath string) (*models.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, f.Path, "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", filePath)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbeOutput(output)
}

func parseProbeOutput(data []byte) (*models.MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	duration, _ := strconv.ParseFloat(out.Format.Duration, 64)
	info := &models.MediaInfo{DurationSeconds: int(duration)}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
				info.Resolution = resolutionLabel(s.Width, s.Height)
			}
		case "audio":
			info.AudioCodecs = append(info.AudioCodecs, s.CodecName)
		}
	}
	return info, nil
}

// resolutionLabel checks width as well so letterboxed encodes
// (1920x800) still classify by their nominal tier.
func resolutionLabel(width, height int) string {
	switch {
	case height >= 2160 || width >= 3840:
		return "4K"
	case height >= 900 || width >= 1800:
		return "1080p"
	case height >= 600 || width >= 1200:
		return "720p"
	case height >= 400:
		return "480p"
	}
	return "SD"
}
