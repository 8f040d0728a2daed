package metadata

import (
	"context"
	"fmt"

	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/rs/zerolog/log"
)

type AnimeGetter interface {
	GetByID(ctx context.Context, id int) (*models.Anime, error)
}

type EpisodeMetadataStore interface {
	ListEpisodeMetadata(ctx context.Context, animeID int) ([]*models.EpisodeMetadata, error)
	UpsertEpisodeMetadata(ctx context.Context, m *models.EpisodeMetadata) error
}

type Service struct {
	anime    AnimeGetter
	store    EpisodeMetadataStore
	chain    *EpisodeChain
	throttle *FetchThrottle
}

func NewService(anime AnimeGetter, store EpisodeMetadataStore, chain *EpisodeChain, throttle *FetchThrottle) *Service {
	if throttle == nil {
		throttle = NewFetchThrottle(DefaultFetchWindow)
	}
	return &Service{anime: anime, store: store, chain: chain, throttle: throttle}
}

// RefreshEpisodes fetches episode metadata for an anime and stores it.
// It reports false without error when the throttle suppressed the call.
// Stored fields are only filled in unless force is set, in which case
// every field the providers supply is overwritten.
func (s *Service) RefreshEpisodes(ctx context.Context, animeID int, force bool) (bool, error) {
	if !s.throttle.TryAcquire(animeID, force) {
		log.Debug().Str("component", "metadata").Int("anime_id", animeID).Msg("episode refresh throttled")
		return false, nil
	}

	updated, err := s.refresh(ctx, animeID, force)
	if err != nil {
		s.throttle.Release(animeID)
		return false, err
	}
	log.Info().Str("component", "metadata").Int("anime_id", animeID).Bool("force", force).
		Int("updated", updated).Msg("episode metadata refreshed")
	return true, nil
}

func (s *Service) refresh(ctx context.Context, animeID int, force bool) (int, error) {
	a, err := s.anime.GetByID(ctx, animeID)
	if err != nil {
		return 0, err
	}
	results, err := s.chain.Fetch(ctx, a)
	if err != nil {
		return 0, err
	}

	existing, err := s.store.ListEpisodeMetadata(ctx, animeID)
	if err != nil {
		return 0, fmt.Errorf("load episode metadata: %w", err)
	}
	byNumber := make(map[float64]*models.EpisodeMetadata, len(existing))
	for _, m := range existing {
		byNumber[m.Number] = m
	}

	updated := 0
	for _, fresh := range Merge(animeID, results) {
		merged, changed := mergeStored(byNumber[fresh.Number], fresh, force)
		if !changed {
			continue
		}
		if err := s.store.UpsertEpisodeMetadata(ctx, merged); err != nil {
			return updated, fmt.Errorf("store episode %g metadata: %w", fresh.Number, err)
		}
		updated++
	}
	return updated, nil
}

// mergeStored combines a stored row with freshly merged data.
func mergeStored(stored, fresh *models.EpisodeMetadata, force bool) (*models.EpisodeMetadata, bool) {
	if stored == nil {
		return fresh, true
	}
	out := *stored
	changed := false
	take := func(cur *string, next *string) bool {
		if next == nil {
			return false
		}
		if cur == nil {
			return true
		}
		return force && *cur != *next
	}

	if take(out.Title, fresh.Title) {
		out.Title, out.TitleSource = fresh.Title, fresh.TitleSource
		changed = true
	}
	if take(out.TitleJapanese, fresh.TitleJapanese) {
		out.TitleJapanese, out.TitleJapaneseSource = fresh.TitleJapanese, fresh.TitleJapaneseSource
		changed = true
	}
	if fresh.Aired != nil && (out.Aired == nil || (force && !out.Aired.Equal(*fresh.Aired))) {
		out.Aired, out.AiredSource = fresh.Aired, fresh.AiredSource
		changed = true
	}
	return &out, changed
}
