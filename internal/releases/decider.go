// Package releases evaluates a candidate release name against the target
// anime's quality profile and release rules.
package releases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/parser"
	"github.com/JustinTDCT/AnimeVault/internal/quality"
)

// DefaultProfileName is used for anime without an assigned quality profile.
const DefaultProfileName = "Default"

type AnimeGetter interface {
	GetByID(ctx context.Context, id int) (*models.Anime, error)
}

type ProfileStore interface {
	GetQualityProfile(ctx context.Context, id uuid.UUID) (*models.QualityProfile, error)
	GetQualityProfileByName(ctx context.Context, name string) (*models.QualityProfile, error)
	ListReleaseProfilesForAnime(ctx context.Context, animeID int) ([]*models.ReleaseProfile, error)
}

type StatusFinder interface {
	FindStatus(ctx context.Context, animeID int, episode float64) (*models.EpisodeStatus, error)
}

type SeadexChecker interface {
	IsBest(ctx context.Context, animeID int, group string) (bool, error)
}

type Observer interface {
	ReleaseParsed(strategy string)
	ReleaseDecided(reason string)
}

type Request struct {
	AnimeID  int    `json:"anime_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size,omitempty"`
}

// Evaluation is the parsed release together with the decision.
type Evaluation struct {
	Release  parser.Release   `json:"release"`
	Quality  string           `json:"quality"`
	IsSeadex bool             `json:"is_seadex"`
	Profile  string           `json:"profile"`
	Decision quality.Decision `json:"decision"`
}

type Decider struct {
	anime    AnimeGetter
	profiles ProfileStore
	status   StatusFinder
	seadex   SeadexChecker
	observer Observer
}

func NewDecider(anime AnimeGetter, profiles ProfileStore, status StatusFinder, seadex SeadexChecker) *Decider {
	return &Decider{anime: anime, profiles: profiles, status: status, seadex: seadex}
}

func (d *Decider) SetObserver(o Observer) { d.observer = o }

// Decide parses req.Filename and scores it for req.AnimeID. When the
// episode already has a file the candidate must also be an upgrade.
func (d *Decider) Decide(ctx context.Context, req Request) (*Evaluation, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, fmt.Errorf("filename is required: %w", apperr.ErrValidation)
	}
	rel, ok := parser.Parse(req.Filename)
	d.parsed(rel.Strategy)
	if !ok {
		return nil, fmt.Errorf("cannot parse %q: %w", req.Filename, apperr.ErrValidation)
	}

	a, err := d.anime.GetByID(ctx, req.AnimeID)
	if err != nil {
		return nil, err
	}
	profile, err := d.profileFor(ctx, a)
	if err != nil {
		return nil, err
	}
	rps, err := d.profiles.ListReleaseProfilesForAnime(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("load release profiles: %w", err)
	}
	rules := make([]models.ReleaseProfile, 0, len(rps))
	for _, p := range rps {
		rules = append(rules, *p)
	}

	q := quality.Classify(req.Filename)
	if q == quality.Unknown {
		q = quality.FromRelease(rel)
	}
	c := quality.Candidate{Release: rel, Quality: q, Size: req.Size}

	if d.seadex != nil && profile.SeadexPreferred && rel.Group != "" {
		best, err := d.seadex.IsBest(ctx, a.ID, rel.Group)
		if err != nil {
			log.Debug().Str("component", "releases").Int("anime_id", a.ID).Err(err).Msg("seadex lookup failed")
		}
		c.IsSeadex = best
	}

	existing, err := d.status.FindStatus(ctx, a.ID, rel.EpisodeNumber)
	if err != nil {
		return nil, fmt.Errorf("load episode status: %w", err)
	}

	decision := quality.Decide(c, *profile, quality.EnabledRules(rules), existing)
	if d.observer != nil {
		d.observer.ReleaseDecided(string(decision.Reason))
	}
	return &Evaluation{
		Release:  rel,
		Quality:  q.Name,
		IsSeadex: c.IsSeadex,
		Profile:  profile.Name,
		Decision: decision,
	}, nil
}

func (d *Decider) profileFor(ctx context.Context, a *models.Anime) (*models.QualityProfile, error) {
	if a.QualityProfileID != nil {
		return d.profiles.GetQualityProfile(ctx, *a.QualityProfileID)
	}
	p, err := d.profiles.GetQualityProfileByName(ctx, DefaultProfileName)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("anime %d has no quality profile and no %q profile exists: %w",
			a.ID, DefaultProfileName, apperr.ErrValidation)
	}
	return p, err
}

func (d *Decider) parsed(strategy string) {
	if d.observer != nil {
		d.observer.ReleaseParsed(strategy)
	}
}
