package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/google/uuid"
)

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// ──────────────────── Quality Profiles ────────────────────

const qualityProfileColumns = `id, name, cutoff, upgrade_allowed, seadex_preferred, allowed_qualities, min_size, max_size`

func scanQualityProfile(row rowScanner) (*models.QualityProfile, error) {
	p := &models.QualityProfile{}
	var id, allowed string
	if err := row.Scan(&id, &p.Name, &p.Cutoff, &p.UpgradeAllowed, &p.SeadexPreferred,
		&allowed, &p.MinSize, &p.MaxSize); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("quality profile id %q: %w", id, err)
	}
	p.ID = parsed
	if err := json.Unmarshal([]byte(allowed), &p.AllowedQualities); err != nil {
		return nil, fmt.Errorf("quality profile %s allowed qualities: %w", p.Name, err)
	}
	return p, nil
}

func (r *ProfileRepository) CreateQualityProfile(ctx context.Context, p *models.QualityProfile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	allowed, err := json.Marshal(p.AllowedQualities)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO quality_profiles (id, name, cutoff, upgrade_allowed, seadex_preferred, allowed_qualities, min_size, max_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID.String(), p.Name, p.Cutoff, p.UpgradeAllowed, p.SeadexPreferred, string(allowed), p.MinSize, p.MaxSize)
	if err != nil {
		return fmt.Errorf("create quality profile %s: %w", p.Name, err)
	}
	return nil
}

func (r *ProfileRepository) UpdateQualityProfile(ctx context.Context, p *models.QualityProfile) error {
	allowed, err := json.Marshal(p.AllowedQualities)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE quality_profiles SET name = $2, cutoff = $3, upgrade_allowed = $4, seadex_preferred = $5,
			allowed_qualities = $6, min_size = $7, max_size = $8, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`,
		p.ID.String(), p.Name, p.Cutoff, p.UpgradeAllowed, p.SeadexPreferred, string(allowed), p.MinSize, p.MaxSize)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("quality profile %s: %w", p.ID, apperr.ErrNotFound)
	}
	return nil
}

func (r *ProfileRepository) GetQualityProfile(ctx context.Context, id uuid.UUID) (*models.QualityProfile, error) {
	p, err := scanQualityProfile(r.db.QueryRowContext(ctx,
		`SELECT `+qualityProfileColumns+` FROM quality_profiles WHERE id = $1`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("quality profile %s: %w", id, apperr.ErrNotFound)
	}
	return p, err
}

func (r *ProfileRepository) GetQualityProfileByName(ctx context.Context, name string) (*models.QualityProfile, error) {
	p, err := scanQualityProfile(r.db.QueryRowContext(ctx,
		`SELECT `+qualityProfileColumns+` FROM quality_profiles WHERE name = $1`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("quality profile %q: %w", name, apperr.ErrNotFound)
	}
	return p, err
}

func (r *ProfileRepository) ListQualityProfiles(ctx context.Context) ([]*models.QualityProfile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+qualityProfileColumns+` FROM quality_profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.QualityProfile
	for rows.Next() {
		p, err := scanQualityProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProfileRepository) DeleteQualityProfile(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM quality_profiles WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("quality profile %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// ──────────────────── Release Profiles ────────────────────

// SaveReleaseProfile creates or replaces a release profile together with
// its rules and anime links.
func (r *ProfileRepository) SaveReleaseProfile(ctx context.Context, p *models.ReleaseProfile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO release_profiles (id, name, enabled, is_global)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			enabled = excluded.enabled,
			is_global = excluded.is_global,
			updated_at = CURRENT_TIMESTAMP`,
		p.ID.String(), p.Name, p.Enabled, p.Global); err != nil {
		return fmt.Errorf("save release profile %s: %w", p.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM release_rules WHERE profile_id = $1`, p.ID.String()); err != nil {
		return err
	}
	for i, rule := range p.Rules {
		if !rule.RuleType.Valid() {
			return fmt.Errorf("release rule %q type %q: %w", rule.Term, rule.RuleType, apperr.ErrValidation)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO release_rules (profile_id, sort_order, term, score, rule_type)
			VALUES ($1, $2, $3, $4, $5)`,
			p.ID.String(), i, rule.Term, rule.Score, string(rule.RuleType)); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM release_profile_anime WHERE profile_id = $1`, p.ID.String()); err != nil {
		return err
	}
	for _, animeID := range p.AnimeIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO release_profile_anime (profile_id, anime_id) VALUES ($1, $2)`,
			p.ID.String(), animeID); err != nil {
			return fmt.Errorf("link release profile %s to anime %d: %w", p.Name, animeID, err)
		}
	}

	return tx.Commit()
}

func (r *ProfileRepository) GetReleaseProfile(ctx context.Context, id uuid.UUID) (*models.ReleaseProfile, error) {
	profiles, err := r.queryReleaseProfiles(ctx,
		`SELECT id, name, enabled, is_global FROM release_profiles WHERE id = $1`, id.String())
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("release profile %s: %w", id, apperr.ErrNotFound)
	}
	return profiles[0], nil
}

func (r *ProfileRepository) ListReleaseProfiles(ctx context.Context) ([]*models.ReleaseProfile, error) {
	return r.queryReleaseProfiles(ctx, `SELECT id, name, enabled, is_global FROM release_profiles ORDER BY name`)
}

// ListReleaseProfilesForAnime returns the enabled profiles that apply to an
// anime: every global profile plus those linked to it explicitly.
func (r *ProfileRepository) ListReleaseProfilesForAnime(ctx context.Context, animeID int) ([]*models.ReleaseProfile, error) {
	return r.queryReleaseProfiles(ctx, `
		SELECT id, name, enabled, is_global FROM release_profiles
		WHERE enabled = TRUE AND (
			is_global = TRUE OR
			id IN (SELECT profile_id FROM release_profile_anime WHERE anime_id = $1)
		)
		ORDER BY name`, animeID)
}

func (r *ProfileRepository) DeleteReleaseProfile(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM release_profiles WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("release profile %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// queryReleaseProfiles drains the profile rows before loading rules and
// links, since the sqlite pool holds a single connection.
func (r *ProfileRepository) queryReleaseProfiles(ctx context.Context, query string, args ...interface{}) ([]*models.ReleaseProfile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []*models.ReleaseProfile
	for rows.Next() {
		p := &models.ReleaseProfile{}
		var id string
		if err := rows.Scan(&id, &p.Name, &p.Enabled, &p.Global); err != nil {
			rows.Close()
			return nil, err
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("release profile id %q: %w", id, err)
		}
		out = append(out, p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	for _, p := range out {
		if p.Rules, err = r.loadRules(ctx, p.ID); err != nil {
			return nil, err
		}
		if p.AnimeIDs, err = r.loadAnimeLinks(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *ProfileRepository) loadRules(ctx context.Context, profileID uuid.UUID) ([]models.ReleaseRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT term, score, rule_type FROM release_rules WHERE profile_id = $1 ORDER BY sort_order`,
		profileID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []models.ReleaseRule{}
	for rows.Next() {
		var rule models.ReleaseRule
		var ruleType string
		if err := rows.Scan(&rule.Term, &rule.Score, &ruleType); err != nil {
			return nil, err
		}
		rule.RuleType = models.RuleType(ruleType)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *ProfileRepository) loadAnimeLinks(ctx context.Context, profileID uuid.UUID) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT anime_id FROM release_profile_anime WHERE profile_id = $1 ORDER BY anime_id`,
		profileID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
