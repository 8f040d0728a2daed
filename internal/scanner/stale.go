package scanner

import (
	"context"
	"os"
	"sort"

	"github.com/JustinTDCT/AnimeVault/internal/events"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/rs/zerolog/log"
)

type EpisodeStore interface {
	ListStatuses(ctx context.Context, animeID int) ([]*models.EpisodeStatus, error)
	ListEpisodeMetadata(ctx context.Context, animeID int) ([]*models.EpisodeMetadata, error)
	ClearDownloadIfPath(ctx context.Context, animeID int, episode float64, path string) (bool, error)
}

// StaleClearer schedules removal of a status row whose file is gone.
type StaleClearer interface {
	ClearStale(ctx context.Context, animeID int, episode float64, path string) error
}

// EpisodeReader lists episodes and heals rows that point at missing files.
type EpisodeReader struct {
	store   EpisodeStore
	clearer StaleClearer
	events  events.Publisher
	exists  func(path string) bool
}

func NewEpisodeReader(store EpisodeStore, pub events.Publisher) *EpisodeReader {
	if pub == nil {
		pub = events.Discard{}
	}
	return &EpisodeReader{store: store, events: pub, exists: fileExists}
}

// SetClearer routes stale rows to a background queue. Without one they are
// cleared on a goroutine.
func (r *EpisodeReader) SetClearer(c StaleClearer) { r.clearer = c }

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// List returns every known episode of an anime, joining status rows with
// episode metadata. Rows whose file has disappeared are reported as not
// downloaded and scheduled for clearing.
func (r *EpisodeReader) List(ctx context.Context, animeID int) ([]models.EpisodeView, error) {
	statuses, err := r.store.ListStatuses(ctx, animeID)
	if err != nil {
		return nil, err
	}
	meta, err := r.store.ListEpisodeMetadata(ctx, animeID)
	if err != nil {
		return nil, err
	}

	views := make(map[float64]*models.EpisodeView, len(statuses)+len(meta))
	for _, st := range statuses {
		v := &models.EpisodeView{EpisodeStatus: *st}
		if st.Downloaded() && !r.exists(*st.FilePath) {
			r.scheduleClear(ctx, animeID, st.EpisodeNumber, *st.FilePath)
			clearFile(&v.EpisodeStatus)
		}
		views[st.EpisodeNumber] = v
	}
	for _, m := range meta {
		v, ok := views[m.Number]
		if !ok {
			v = &models.EpisodeView{EpisodeStatus: models.EpisodeStatus{
				AnimeID: animeID, EpisodeNumber: m.Number, Season: 1, Monitored: true,
			}}
			views[m.Number] = v
		}
		v.Title = m.Title
	}

	out := make([]models.EpisodeView, 0, len(views))
	for _, v := range views {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpisodeNumber < out[j].EpisodeNumber })
	return out, nil
}

func clearFile(st *models.EpisodeStatus) {
	st.FilePath = nil
	st.FileSize = nil
	st.QualityID = nil
	st.ReleaseGroup = nil
	st.IsSeadex = false
	st.DownloadedAt = nil
	st.MediaInfo = nil
}

func (r *EpisodeReader) scheduleClear(ctx context.Context, animeID int, episode float64, path string) {
	if r.clearer != nil {
		if err := r.clearer.ClearStale(ctx, animeID, episode, path); err != nil {
			log.Warn().Str("component", "scanner").Int("anime_id", animeID).Float64("episode", episode).
				Err(err).Msg("schedule stale clear failed")
		}
		return
	}
	go func() {
		if err := r.ClearStale(context.Background(), animeID, episode, path); err != nil {
			log.Warn().Str("component", "scanner").Int("anime_id", animeID).Float64("episode", episode).
				Err(err).Msg("stale clear failed")
		}
	}()
}

// ClearStale clears the row only if it still points at path and the file
// is still missing.
func (r *EpisodeReader) ClearStale(ctx context.Context, animeID int, episode float64, path string) error {
	if r.exists(path) {
		return nil
	}
	cleared, err := r.store.ClearDownloadIfPath(ctx, animeID, episode, path)
	if err != nil {
		return err
	}
	if cleared {
		log.Info().Str("component", "scanner").Int("anime_id", animeID).Float64("episode", episode).
			Str("path", path).Msg("cleared stale episode")
		r.events.Publish(events.EpisodeStale, map[string]interface{}{
			"anime_id": animeID, "episode": episode, "path": path,
		})
	}
	return nil
}
