// Package metadata talks to the anime catalog providers and keeps the
// per-episode metadata table current.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/rs/zerolog/log"
)

// Searcher resolves free text and ids to catalog entries.
type Searcher interface {
	Search(ctx context.Context, query string) ([]*models.Anime, error)
	GetByID(ctx context.Context, id int) (*models.Anime, error)
}

// EpisodeInfo is one provider's view of an episode. Empty fields are
// treated as "not supplied".
type EpisodeInfo struct {
	Number        float64
	Title         string
	TitleJapanese string
	Aired         *time.Time
}

type EpisodeProvider interface {
	Name() models.MetadataSource
	Episodes(ctx context.Context, a *models.Anime) ([]EpisodeInfo, error)
}

var (
	_ Searcher        = (*AniListClient)(nil)
	_ EpisodeProvider = (*AniListClient)(nil)
	_ EpisodeProvider = (*KitsuClient)(nil)
	_ EpisodeProvider = (*JikanClient)(nil)
)

// ProviderResult holds the episodes one provider returned.
type ProviderResult struct {
	Source   models.MetadataSource
	Episodes []EpisodeInfo
}

// EpisodeChain asks every provider in priority order. It fails only when
// none of them answered.
type EpisodeChain struct {
	Providers []EpisodeProvider
	Timeout   time.Duration
	Retries   int
	Backoff   time.Duration
}

func NewEpisodeChain(providers ...EpisodeProvider) *EpisodeChain {
	return &EpisodeChain{
		Providers: providers,
		Timeout:   15 * time.Second,
		Retries:   2,
		Backoff:   500 * time.Millisecond,
	}
}

func (c *EpisodeChain) Fetch(ctx context.Context, a *models.Anime) ([]ProviderResult, error) {
	var (
		results []ProviderResult
		errs    []error
	)
	for _, p := range c.Providers {
		eps, err := c.fetchOne(ctx, p, a)
		if err != nil {
			log.Warn().Str("component", "metadata").Str("provider", string(p.Name())).
				Int("anime_id", a.ID).Err(err).Msg("episode provider failed")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		results = append(results, ProviderResult{Source: p.Name(), Episodes: eps})
	}
	if len(results) == 0 {
		return nil, errors.Join(append([]error{apperr.ErrProviderUnavailable}, errs...)...)
	}
	return results, nil
}

func (c *EpisodeChain) fetchOne(ctx context.Context, p EpisodeProvider, a *models.Anime) ([]EpisodeInfo, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.Backoff << uint(attempt-1)):
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		eps, err := p.Episodes(callCtx, a)
		cancel()
		if err == nil {
			return eps, nil
		}
		if errors.Is(err, errNotListed) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// errNotListed means the provider has no id for this anime; retrying is
// pointless.
var errNotListed = errors.New("anime not listed by provider")

// Merge folds provider results into per-episode metadata. Within one
// refresh the first provider to supply a field wins it.
func Merge(animeID int, results []ProviderResult) []*models.EpisodeMetadata {
	byNumber := make(map[float64]*models.EpisodeMetadata)
	for _, r := range results {
		src := r.Source
		for _, ep := range r.Episodes {
			if ep.Number <= 0 {
				continue
			}
			m, ok := byNumber[ep.Number]
			if !ok {
				m = &models.EpisodeMetadata{AnimeID: animeID, Number: ep.Number}
				byNumber[ep.Number] = m
			}
			if m.Title == nil && ep.Title != "" {
				m.Title, m.TitleSource = strPtr(ep.Title), sourcePtr(src)
			}
			if m.TitleJapanese == nil && ep.TitleJapanese != "" {
				m.TitleJapanese, m.TitleJapaneseSource = strPtr(ep.TitleJapanese), sourcePtr(src)
			}
			if m.Aired == nil && ep.Aired != nil {
				m.Aired, m.AiredSource = ep.Aired, sourcePtr(src)
			}
		}
	}

	out := make([]*models.EpisodeMetadata, 0, len(byNumber))
	for _, m := range byNumber {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func strPtr(s string) *string { return &s }

func sourcePtr(s models.MetadataSource) *models.MetadataSource { return &s }
