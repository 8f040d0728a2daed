package scanner

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/ffmpeg"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/parser"
	"github.com/JustinTDCT/AnimeVault/internal/quality"
	"github.com/rs/zerolog/log"
)

type StatusWriter interface {
	MarkDownloaded(ctx context.Context, p models.MarkDownloadedParams) error
}

// SeadexChecker reports whether a group is a curated best release.
type SeadexChecker interface {
	IsBest(ctx context.Context, animeID int, group string) (bool, error)
}

// Importer records files against episodes. Both the file scan and manual
// mapping go through it.
type Importer struct {
	store  StatusWriter
	prober ffmpeg.Prober
	seadex SeadexChecker
}

func NewImporter(store StatusWriter, prober ffmpeg.Prober, seadex SeadexChecker) *Importer {
	return &Importer{store: store, prober: prober, seadex: seadex}
}

func (i *Importer) MarkDownloaded(ctx context.Context, p models.MarkDownloadedParams) error {
	if p.AnimeID <= 0 {
		return fmt.Errorf("anime id %d: %w", p.AnimeID, apperr.ErrValidation)
	}
	if !ValidEpisodeNumber(p.EpisodeNumber) {
		return fmt.Errorf("episode number %g must be positive: %w", p.EpisodeNumber, apperr.ErrValidation)
	}
	if p.FilePath == "" {
		return fmt.Errorf("file path is required: %w", apperr.ErrValidation)
	}
	if p.Season < 1 {
		p.Season = 1
	}
	return i.store.MarkDownloaded(ctx, p)
}

// ValidEpisodeNumber reports whether ep is a finite positive episode number.
func ValidEpisodeNumber(ep float64) bool {
	return ep > 0 && !math.IsNaN(ep) && !math.IsInf(ep, 0)
}

// ImportFile inspects a file on disk and records it as the given episode.
// rel may be nil when the name did not parse; quality then falls back to
// the probed resolution.
func (i *Importer) ImportFile(ctx context.Context, animeID int, episode float64, path string, rel *parser.Release) error {
	if !ValidEpisodeNumber(episode) {
		return fmt.Errorf("episode number %g must be positive: %w", episode, apperr.ErrValidation)
	}
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file %s: %w", path, apperr.ErrNotFound)
		}
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory: %w", path, apperr.ErrValidation)
	}
	if rel == nil {
		if parsed, ok := parser.Parse(filepath.Base(path)); ok {
			rel = &parsed
		}
	}

	p := models.MarkDownloadedParams{
		AnimeID:       animeID,
		EpisodeNumber: episode,
		FilePath:      path,
		FileSize:      fi.Size(),
	}

	q := quality.Classify(filepath.Base(path))
	if rel != nil {
		p.Season = rel.SeasonOrDefault()
		p.ReleaseGroup = rel.Group
		if q == quality.Unknown {
			q = quality.FromRelease(*rel)
		}
	}

	if i.prober != nil {
		info, err := i.prober.Probe(ctx, path)
		if err != nil {
			log.Debug().Str("component", "scanner").Str("path", path).Err(err).Msg("probe failed")
		} else {
			p.MediaInfo = info
			if q == quality.Unknown {
				q = quality.FromResolution(info.Resolution)
			}
		}
	}
	p.QualityID = q.ID

	if i.seadex != nil && p.ReleaseGroup != "" {
		best, err := i.seadex.IsBest(ctx, animeID, p.ReleaseGroup)
		if err != nil {
			log.Debug().Str("component", "scanner").Int("anime_id", animeID).Err(err).Msg("seadex lookup failed")
		}
		p.IsSeadex = best
	}

	return i.MarkDownloaded(ctx, p)
}
