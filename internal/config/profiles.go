package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/quality"
)

// ProfileFile is the YAML document seeding quality and release profiles.
type ProfileFile struct {
	NamingPattern   string                  `yaml:"naming_pattern,omitempty"`
	QualityProfiles []models.QualityProfile `yaml:"quality_profiles"`
	ReleaseProfiles []models.ReleaseProfile `yaml:"release_profiles"`
}

// LoadProfiles reads and validates a profile file. Unknown keys are
// rejected so a typo never silently drops a rule.
func LoadProfiles(path string) (*ProfileFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f ProfileFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", apperr.ErrValidation, path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *ProfileFile) Validate() error {
	names := map[string]bool{}
	for _, p := range f.QualityProfiles {
		if err := quality.ValidateProfile(p); err != nil {
			return err
		}
		if names[p.Name] {
			return fmt.Errorf("%w: quality profile %q defined twice", apperr.ErrValidation, p.Name)
		}
		names[p.Name] = true
	}
	names = map[string]bool{}
	for _, p := range f.ReleaseProfiles {
		if p.Name == "" {
			return fmt.Errorf("%w: release profile name is required", apperr.ErrValidation)
		}
		if names[p.Name] {
			return fmt.Errorf("%w: release profile %q defined twice", apperr.ErrValidation, p.Name)
		}
		names[p.Name] = true
		for _, r := range p.Rules {
			if !r.RuleType.Valid() {
				return fmt.Errorf("%w: release profile %q: unknown rule type %q", apperr.ErrValidation, p.Name, r.RuleType)
			}
			if r.Term == "" {
				return fmt.Errorf("%w: release profile %q: empty term", apperr.ErrValidation, p.Name)
			}
		}
	}
	return nil
}

type ProfileStore interface {
	GetQualityProfileByName(ctx context.Context, name string) (*models.QualityProfile, error)
	CreateQualityProfile(ctx context.Context, p *models.QualityProfile) error
	ListReleaseProfiles(ctx context.Context) ([]*models.ReleaseProfile, error)
	SaveReleaseProfile(ctx context.Context, p *models.ReleaseProfile) error
}

// Seed creates the file's quality profiles that do not exist yet and
// upserts its release profiles by name. Profiles edited through the API
// keep their stored quality settings.
func (f *ProfileFile) Seed(ctx context.Context, store ProfileStore) error {
	for i := range f.QualityProfiles {
		p := f.QualityProfiles[i]
		_, err := store.GetQualityProfileByName(ctx, p.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("lookup quality profile %q: %w", p.Name, err)
		}
		if err := store.CreateQualityProfile(ctx, &p); err != nil {
			return fmt.Errorf("create quality profile %q: %w", p.Name, err)
		}
		log.Info().Str("component", "config").Str("profile", p.Name).Msg("seeded quality profile")
	}

	existing, err := store.ListReleaseProfiles(ctx)
	if err != nil {
		return fmt.Errorf("list release profiles: %w", err)
	}
	byName := make(map[string]*models.ReleaseProfile, len(existing))
	for _, p := range existing {
		byName[p.Name] = p
	}
	for i := range f.ReleaseProfiles {
		p := f.ReleaseProfiles[i]
		if cur, ok := byName[p.Name]; ok {
			p.ID = cur.ID
		}
		if err := store.SaveReleaseProfile(ctx, &p); err != nil {
			return fmt.Errorf("save release profile %q: %w", p.Name, err)
		}
	}
	return nil
}
