package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/JustinTDCT/AnimeVault/internal/events"
	"github.com/JustinTDCT/AnimeVault/internal/folderutil"
	"github.com/JustinTDCT/AnimeVault/internal/matcher"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/parser"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ProgressEvery is the number of files between scan:progress events.
const ProgressEvery = 100

type MonitoredLister interface {
	ListMonitored(ctx context.Context) ([]*models.Anime, error)
}

type DownloadedLister interface {
	ListDownloaded(ctx context.Context, animeID int) ([]*models.EpisodeStatus, error)
}

// Observer receives per-file scan outcomes; metrics hook in here.
type Observer interface {
	FileScanned(outcome string)
}

const (
	OutcomeImported  = "imported"
	OutcomeSkipped   = "skipped"
	OutcomeUnmatched = "unmatched"
	OutcomeError     = "error"
)

type FileScanner struct {
	catalog  MonitoredLister
	episodes DownloadedLister
	importer *Importer
	events   events.Publisher
	observer Observer
}

func NewFileScanner(catalog MonitoredLister, episodes DownloadedLister, importer *Importer, pub events.Publisher) *FileScanner {
	if pub == nil {
		pub = events.Discard{}
	}
	return &FileScanner{catalog: catalog, episodes: episodes, importer: importer, events: pub}
}

func (s *FileScanner) SetObserver(o Observer) { s.observer = o }

type scanProgress struct {
	ScanID    uuid.UUID `json:"scan_id"`
	Processed int       `json:"processed"`
	Imported  int       `json:"imported"`
}

// Scan walks root and records every video file whose episode is not yet
// known. Cancellation is checked between files.
func (s *FileScanner) Scan(ctx context.Context, root string) (*models.ScanResult, error) {
	result := &models.ScanResult{
		ScanID:    uuid.New(),
		Unmatched: []string{},
		Errors:    []string{},
		StartedAt: time.Now().UTC(),
	}

	catalog, err := s.catalog.ListMonitored(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	s.events.Publish(events.ScanStart, map[string]interface{}{"scan_id": result.ScanID, "root": root})
	log.Info().Str("component", "scanner").Str("root", root).Str("scan_id", result.ScanID.String()).Msg("file scan started")

	known := map[int]map[float64]bool{}
	processed := 0

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && folderutil.IsHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if folderutil.IsHidden(d.Name()) || !parser.IsVideoFile(d.Name()) {
			return nil
		}

		result.FilesFound++
		outcome := s.scanFile(ctx, path, root, catalog, known, result)
		s.observe(outcome)

		processed++
		if processed%ProgressEvery == 0 {
			s.events.Publish(events.ScanProgress, scanProgress{
				ScanID: result.ScanID, Processed: processed, Imported: result.FilesImported,
			})
		}
		return nil
	})
	result.FinishedAt = time.Now().UTC()
	if err != nil {
		return result, err
	}

	s.events.Publish(events.ScanComplete, result)
	log.Info().Str("component", "scanner").Str("scan_id", result.ScanID.String()).
		Int("found", result.FilesFound).Int("imported", result.FilesImported).
		Int("skipped", result.FilesSkipped).Int("unmatched", len(result.Unmatched)).
		Msg("file scan complete")
	return result, nil
}

func (s *FileScanner) scanFile(ctx context.Context, path, root string, catalog []*models.Anime,
	known map[int]map[float64]bool, result *models.ScanResult) string {
	rel, ok := parser.Parse(filepath.Base(path))
	if !ok {
		result.Unmatched = append(result.Unmatched, path)
		return OutcomeUnmatched
	}
	a, _ := matcher.MatchRelease(rel, catalog, path, root)
	if a == nil {
		result.Unmatched = append(result.Unmatched, path)
		return OutcomeUnmatched
	}

	episodes, err := s.downloadedSet(ctx, a.ID, known)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
		return OutcomeError
	}
	if episodes[rel.EpisodeNumber] {
		result.FilesSkipped++
		return OutcomeSkipped
	}

	if err := s.importer.ImportFile(ctx, a.ID, rel.EpisodeNumber, path, &rel); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
		return OutcomeError
	}
	episodes[rel.EpisodeNumber] = true
	result.FilesImported++
	return OutcomeImported
}

// downloadedSet loads an anime's downloaded episodes once per scan.
func (s *FileScanner) downloadedSet(ctx context.Context, animeID int, known map[int]map[float64]bool) (map[float64]bool, error) {
	if set, ok := known[animeID]; ok {
		return set, nil
	}
	rows, err := s.episodes.ListDownloaded(ctx, animeID)
	if err != nil {
		return nil, err
	}
	set := make(map[float64]bool, len(rows))
	for _, r := range rows {
		set[r.EpisodeNumber] = true
	}
	known[animeID] = set
	return set, nil
}

func (s *FileScanner) observe(outcome string) {
	if s.observer != nil {
		s.observer.FileScanned(outcome)
	}
}
