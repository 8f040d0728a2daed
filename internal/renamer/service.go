package renamer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/events"
	"github.com/JustinTDCT/AnimeVault/internal/fileops"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/quality"
	"github.com/rs/zerolog/log"
)

type AnimeGetter interface {
	GetByID(ctx context.Context, id int) (*models.Anime, error)
}

type EpisodeStore interface {
	ListDownloaded(ctx context.Context, animeID int) ([]*models.EpisodeStatus, error)
	ListEpisodeMetadata(ctx context.Context, animeID int) ([]*models.EpisodeMetadata, error)
	UpdateFilePath(ctx context.Context, animeID int, episode float64, path string) error
}

type Recycler interface {
	Recycle(ctx context.Context, path string, animeID *int, episode *float64) (*models.RecycledFile, error)
}

// Observer receives one outcome per attempted rename.
type Observer interface {
	RenameAttempted(outcome string)
}

const (
	OutcomeRenamed    = "renamed"
	OutcomeFailed     = "failed"
	OutcomeRolledBack = "rolled_back"
	OutcomeCritical   = "critical"
)

type Service struct {
	anime       AnimeGetter
	episodes    EpisodeStore
	recycler    Recycler
	libraryRoot string
	events      events.Publisher
	observer    Observer

	patternMu sync.RWMutex
	pattern   string

	locksMu sync.Mutex
	locks   map[int]*sync.Mutex

	move func(src, dst string) error
}

func NewService(anime AnimeGetter, episodes EpisodeStore, recycler Recycler, libraryRoot, pattern string, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	return &Service{
		anime:       anime,
		episodes:    episodes,
		recycler:    recycler,
		libraryRoot: libraryRoot,
		pattern:     pattern,
		events:      pub,
		locks:       make(map[int]*sync.Mutex),
		move:        fileops.Move,
	}
}

func (s *Service) SetObserver(o Observer) { s.observer = o }

func (s *Service) SetPattern(pattern string) {
	s.patternMu.Lock()
	s.pattern = pattern
	s.patternMu.Unlock()
}

func (s *Service) Pattern() string {
	s.patternMu.RLock()
	defer s.patternMu.RUnlock()
	if s.pattern == "" {
		return DefaultPattern
	}
	return s.pattern
}

// Preview lists the downloaded episodes whose rendered destination differs
// from their current path.
func (s *Service) Preview(ctx context.Context, animeID int) ([]models.RenamePreviewItem, error) {
	a, err := s.anime.GetByID(ctx, animeID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.episodes.ListDownloaded(ctx, animeID)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	meta, err := s.episodes.ListEpisodeMetadata(ctx, animeID)
	if err != nil {
		return nil, fmt.Errorf("list episode metadata: %w", err)
	}
	titles := make(map[float64]string, len(meta))
	for _, m := range meta {
		if m.Title != nil {
			titles[m.Number] = *m.Title
		}
	}

	folder := s.animeFolder(a)
	pattern := s.Pattern()
	items := []models.RenamePreviewItem{}
	for _, st := range statuses {
		current := *st.FilePath
		t := Tokens{
			SeriesTitle:  a.DisplayTitle(),
			Season:       st.Season,
			Episode:      st.EpisodeNumber,
			EpisodeTitle: titles[st.EpisodeNumber],
		}
		if a.Year != nil {
			t.Year = *a.Year
		}
		if st.QualityID != nil {
			if q := quality.ByID(*st.QualityID); q != quality.Unknown {
				t.Quality = q.Name
			}
		}
		if st.ReleaseGroup != nil {
			t.Group = *st.ReleaseGroup
		}

		rendered := Render(pattern, t)
		if rendered == "" {
			continue
		}
		dest := filepath.Join(folder, relativeTo(folder, rendered)) + strings.ToLower(filepath.Ext(current))
		if filepath.Clean(dest) == filepath.Clean(current) {
			continue
		}
		items = append(items, models.RenamePreviewItem{
			AnimeID:         animeID,
			EpisodeNumber:   st.EpisodeNumber,
			CurrentPath:     current,
			DestinationPath: dest,
		})
	}
	return items, nil
}

func (s *Service) animeFolder(a *models.Anime) string {
	if a.Path != nil && *a.Path != "" {
		return filepath.Clean(*a.Path)
	}
	name := cleanSegment(a.DisplayTitle())
	if a.Year != nil {
		name = cleanSegment(fmt.Sprintf("%s (%d)", seriesTitle(name, fmt.Sprint(*a.Year)), *a.Year))
	}
	return filepath.Join(s.libraryRoot, name)
}

// relativeTo drops a leading rendered segment that names the anime folder
// itself, so patterns with a series directory do not nest it twice.
func relativeTo(folder, rendered string) string {
	segs := strings.Split(rendered, "/")
	if len(segs) > 1 && strings.EqualFold(segs[0], filepath.Base(folder)) {
		segs = segs[1:]
	}
	return filepath.Join(segs...)
}

func (s *Service) lockFor(animeID int) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[animeID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[animeID] = l
	}
	return l
}

// Execute renames every previewed episode of an anime. One episode failing
// never stops the rest; the result is returned even when items fail. A
// destination holding another tracked episode is only taken once that episode
// has moved off it; items still blocked when no further progress is possible
// fail without touching either file. A rollback that could not be completed
// is reported as apperr.ErrCritical alongside the result.
func (s *Service) Execute(ctx context.Context, animeID int) (*models.RenameResult, error) {
	lock := s.lockFor(animeID)
	lock.Lock()
	defer lock.Unlock()

	items, err := s.Preview(ctx, animeID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.episodes.ListDownloaded(ctx, animeID)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	owners := make(map[string]float64, len(statuses))
	for _, st := range statuses {
		if st.FilePath != nil {
			owners[filepath.Clean(*st.FilePath)] = st.EpisodeNumber
		}
	}

	result := &models.RenameResult{Failures: []string{}}
	var critical []error
	sources := map[string]bool{}
	pending := items
	for len(pending) > 0 && ctx.Err() == nil {
		var blocked []models.RenamePreviewItem
		for _, item := range pending {
			if ctx.Err() != nil {
				break
			}
			if ep, ok := owners[filepath.Clean(item.DestinationPath)]; ok && ep != item.EpisodeNumber {
				blocked = append(blocked, item)
				continue
			}
			err := s.renameOne(ctx, item, owners)
			if err == nil {
				sources[filepath.Dir(item.CurrentPath)] = true
			}
			if errors.Is(err, apperr.ErrCritical) {
				critical = append(critical, err)
			}
			s.tally(result, err)
		}
		if len(blocked) == len(pending) {
			for _, item := range blocked {
				ep := owners[filepath.Clean(item.DestinationPath)]
				s.tally(result, fmt.Errorf("episode %g: destination %s holds episode %g",
					item.EpisodeNumber, item.DestinationPath, ep))
			}
			break
		}
		pending = blocked
	}

	for dir := range sources {
		fileops.PruneEmptyDirs(dir, s.libraryRoot)
	}

	s.events.Publish(events.RenameComplete, map[string]interface{}{"anime_id": animeID, "result": result})
	log.Info().Str("component", "renamer").Int("anime_id", animeID).
		Int("renamed", result.Renamed).Int("failed", result.Failed).Msg("rename complete")

	if len(critical) > 0 {
		return result, errors.Join(critical...)
	}
	return result, ctx.Err()
}

func (s *Service) tally(result *models.RenameResult, err error) {
	switch {
	case err == nil:
		result.Renamed++
		s.observe(OutcomeRenamed)
		return
	case errors.Is(err, apperr.ErrCritical):
		s.observe(OutcomeCritical)
	case errors.Is(err, errRolledBack):
		s.observe(OutcomeRolledBack)
	default:
		s.observe(OutcomeFailed)
	}
	result.Failed++
	result.Failures = append(result.Failures, err.Error())
}

var errRolledBack = errors.New("rolled back")

// renameOne moves a single episode and records its new path. owners maps
// every tracked file of the anime to its episode and is kept current.
func (s *Service) renameOne(ctx context.Context, item models.RenamePreviewItem, owners map[string]float64) error {
	src, dst := filepath.Clean(item.CurrentPath), filepath.Clean(item.DestinationPath)
	if ep, ok := owners[src]; !ok || ep != item.EpisodeNumber {
		return fmt.Errorf("episode %g: %s is no longer its recorded file", item.EpisodeNumber, src)
	}
	if !fileops.Exists(src) {
		return fmt.Errorf("episode %g: source %s is missing", item.EpisodeNumber, src)
	}

	if fileops.Exists(dst) {
		if _, tracked := owners[dst]; tracked {
			return fmt.Errorf("episode %g: destination %s is a tracked episode file", item.EpisodeNumber, dst)
		}
		if s.recycler == nil {
			return fmt.Errorf("episode %g: destination %s is occupied", item.EpisodeNumber, dst)
		}
		animeID, ep := item.AnimeID, item.EpisodeNumber
		if _, err := s.recycler.Recycle(ctx, dst, &animeID, &ep); err != nil {
			return fmt.Errorf("episode %g: recycle occupied destination: %w", item.EpisodeNumber, err)
		}
	}

	if err := s.move(src, dst); err != nil {
		return fmt.Errorf("episode %g: %w", item.EpisodeNumber, err)
	}

	if err := s.episodes.UpdateFilePath(ctx, item.AnimeID, item.EpisodeNumber, dst); err != nil {
		if mvErr := s.move(dst, src); mvErr != nil {
			owners[dst] = item.EpisodeNumber
			log.Error().Str("component", "renamer").Str("level", "critical").Int("anime_id", item.AnimeID).
				Float64("episode", item.EpisodeNumber).Str("file", dst).Str("recorded", src).
				Err(mvErr).Msg("rollback failed; file and database disagree")
			return fmt.Errorf("%w: episode %g moved to %s but the database still records %s: %v",
				apperr.ErrCritical, item.EpisodeNumber, dst, src, mvErr)
		}
		log.Warn().Str("component", "renamer").Int("anime_id", item.AnimeID).
			Float64("episode", item.EpisodeNumber).Err(err).Msg("path update failed, file moved back")
		return fmt.Errorf("episode %g: update path: %v: %w", item.EpisodeNumber, err, errRolledBack)
	}
	delete(owners, src)
	owners[dst] = item.EpisodeNumber
	return nil
}

func (s *Service) observe(outcome string) {
	if s.observer != nil {
		s.observer.RenameAttempted(outcome)
	}
}
