package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/JustinTDCT/AnimeVault/internal/events"
	"github.com/JustinTDCT/AnimeVault/internal/folderutil"
	"github.com/JustinTDCT/AnimeVault/internal/metadata"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/parser"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const maxSuggestions = 5

// ──────────────────── Discovery State ────────────────────

// DiscoveryState holds the unmapped folders found by the last discovery
// scan and whether one is running.
type DiscoveryState struct {
	mu       sync.RWMutex
	running  bool
	folders  map[string]models.UnmappedFolder
	lastScan time.Time
}

func NewDiscoveryState() *DiscoveryState {
	return &DiscoveryState{folders: make(map[string]models.UnmappedFolder)}
}

// TryBegin marks a scan as running. It returns false when one already is.
func (s *DiscoveryState) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.folders = make(map[string]models.UnmappedFolder)
	return true
}

func (s *DiscoveryState) Finish() {
	s.mu.Lock()
	s.running = false
	s.lastScan = time.Now()
	s.mu.Unlock()
}

func (s *DiscoveryState) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *DiscoveryState) LastScan() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastScan
}

// Snapshot returns the unmapped folders sorted by name.
func (s *DiscoveryState) Snapshot() []models.UnmappedFolder {
	s.mu.RLock()
	out := make([]models.UnmappedFolder, 0, len(s.folders))
	for _, f := range s.folders {
		out = append(out, f)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Remove drops a folder, e.g. once it has been mapped to an anime.
func (s *DiscoveryState) Remove(path string) {
	s.mu.Lock()
	delete(s.folders, path)
	s.mu.Unlock()
}

func (s *DiscoveryState) put(f models.UnmappedFolder) {
	s.mu.Lock()
	s.folders[f.Path] = f
	s.mu.Unlock()
}

// ──────────────────── Discovery Scan ────────────────────

type CatalogLister interface {
	List(ctx context.Context) ([]*models.Anime, error)
}

type Discovery struct {
	root    string
	catalog CatalogLister
	search  metadata.Searcher
	limiter *rate.Limiter
	state   *DiscoveryState
	events  events.Publisher
}

func NewDiscovery(root string, catalog CatalogLister, search metadata.Searcher, delay time.Duration,
	state *DiscoveryState, pub events.Publisher) *Discovery {
	if pub == nil {
		pub = events.Discard{}
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Discovery{
		root:    root,
		catalog: catalog,
		search:  search,
		limiter: rate.NewLimiter(limit, 1),
		state:   state,
		events:  pub,
	}
}

func (d *Discovery) State() *DiscoveryState { return d.state }

// Scan looks for library folders that no catalog entry claims. It returns
// false without doing anything when a scan is already running.
func (d *Discovery) Scan(ctx context.Context) (bool, error) {
	if !d.state.TryBegin() {
		log.Info().Str("component", "scanner").Msg("discovery scan already running")
		return false, nil
	}
	defer d.state.Finish()

	catalog, err := d.catalog.List(ctx)
	if err != nil {
		return true, fmt.Errorf("load catalog: %w", err)
	}
	known := newCatalogIndex(catalog)

	entries, err := os.ReadDir(d.root)
	if err != nil {
		return true, fmt.Errorf("read library root: %w", err)
	}

	unmapped := 0
	for _, e := range entries {
		if !e.IsDir() || folderutil.IsHidden(e.Name()) || folderutil.IsGeneric(e.Name()) {
			continue
		}
		path := filepath.Join(d.root, e.Name())
		cleaned := folderutil.CleanName(e.Name())
		if cleaned == "" || known.claims(path, cleaned) {
			continue
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return true, err
		}
		results, err := d.search.Search(ctx, cleaned)
		if err != nil {
			log.Warn().Str("component", "scanner").Str("folder", e.Name()).Err(err).Msg("discovery search failed")
		}
		if len(results) > 0 && known.byID[results[0].ID] {
			// Already imported under a different folder.
			continue
		}

		folder := models.UnmappedFolder{Path: path, Name: e.Name(), Suggestions: suggestions(results)}
		d.state.put(folder)
		d.events.Publish(events.DiscoveryFolder, folder)
		unmapped++
	}

	d.events.Publish(events.DiscoveryComplete, map[string]int{"unmapped": unmapped})
	log.Info().Str("component", "scanner").Int("unmapped", unmapped).Msg("discovery scan complete")
	return true, nil
}

func suggestions(results []*models.Anime) []models.FolderSuggestion {
	out := []models.FolderSuggestion{}
	for i, a := range results {
		if i == maxSuggestions {
			break
		}
		out = append(out, models.FolderSuggestion{
			AnimeID:      a.ID,
			TitleRomaji:  a.TitleRomaji,
			TitleEnglish: a.TitleEnglish,
			Format:       a.Format,
			EpisodeCount: a.EpisodeCount,
			CoverImage:   a.CoverImage,
		})
	}
	return out
}

type catalogIndex struct {
	byID   map[int]bool
	paths  map[string]bool
	titles map[string]bool
}

func newCatalogIndex(catalog []*models.Anime) catalogIndex {
	idx := catalogIndex{byID: map[int]bool{}, paths: map[string]bool{}, titles: map[string]bool{}}
	for _, a := range catalog {
		idx.byID[a.ID] = true
		if a.Path != nil && *a.Path != "" {
			idx.paths[filepath.Clean(*a.Path)] = true
		}
		for _, t := range a.Titles() {
			idx.titles[parser.MatchKey(t)] = true
		}
	}
	return idx
}

func (c catalogIndex) claims(path, cleanedName string) bool {
	return c.paths[filepath.Clean(path)] || c.titles[parser.MatchKey(cleanedName)]
}
