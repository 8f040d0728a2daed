package models

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────── Enums ────────────────────

type RuleType string

const (
	RulePreferred RuleType = "preferred"
	RuleMust      RuleType = "must"
	RuleMustNot   RuleType = "must_not"
)

func (t RuleType) Valid() bool {
	switch t {
	case RulePreferred, RuleMust, RuleMustNot:
		return true
	}
	return false
}

type MetadataSource string

const (
	SourceAniList MetadataSource = "anilist"
	SourceKitsu   MetadataSource = "kitsu"
	SourceJikan   MetadataSource = "jikan"
)

// ──────────────────── Anime ────────────────────

type Anime struct {
	ID               int        `json:"id" db:"id"` // AniList id
	MalID            *int       `json:"mal_id,omitempty" db:"mal_id"`
	KitsuID          *int       `json:"kitsu_id,omitempty" db:"kitsu_id"`
	TitleRomaji      string     `json:"title_romaji" db:"title_romaji"`
	TitleEnglish     *string    `json:"title_english,omitempty" db:"title_english"`
	Format           string     `json:"format" db:"format"`
	EpisodeCount     *int       `json:"episode_count,omitempty" db:"episode_count"`
	Year             *int       `json:"year,omitempty" db:"year"`
	CoverImage       *string    `json:"cover_image,omitempty" db:"cover_image"`
	Path             *string    `json:"path,omitempty" db:"path"`
	QualityProfileID *uuid.UUID `json:"quality_profile_id,omitempty" db:"quality_profile_id"`
	Monitored        bool       `json:"monitored" db:"monitored"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Titles returns the non-empty titles used for matching, romaji first.
func (a *Anime) Titles() []string {
	out := []string{a.TitleRomaji}
	if a.TitleEnglish != nil && *a.TitleEnglish != "" && *a.TitleEnglish != a.TitleRomaji {
		out = append(out, *a.TitleEnglish)
	}
	return out
}

// DisplayTitle prefers the English title.
func (a *Anime) DisplayTitle() string {
	if a.TitleEnglish != nil && *a.TitleEnglish != "" {
		return *a.TitleEnglish
	}
	return a.TitleRomaji
}

// ──────────────────── Episodes ────────────────────

type MediaInfo struct {
	Resolution      string   `json:"resolution,omitempty"`
	VideoCodec      string   `json:"video_codec,omitempty"`
	AudioCodecs     []string `json:"audio_codecs,omitempty"`
	DurationSeconds int      `json:"duration_seconds,omitempty"`
}

type EpisodeStatus struct {
	AnimeID       int        `json:"anime_id" db:"anime_id"`
	EpisodeNumber float64    `json:"episode_number" db:"episode_number"`
	Season        int        `json:"season" db:"season"`
	Monitored     bool       `json:"monitored" db:"monitored"`
	QualityID     *int       `json:"quality_id,omitempty" db:"quality_id"`
	IsSeadex      bool       `json:"is_seadex" db:"is_seadex"`
	ReleaseGroup  *string    `json:"release_group,omitempty" db:"release_group"`
	FilePath      *string    `json:"file_path,omitempty" db:"file_path"`
	FileSize      *int64     `json:"file_size,omitempty" db:"file_size"`
	DownloadedAt  *time.Time `json:"downloaded_at,omitempty" db:"downloaded_at"`
	MediaInfo     *MediaInfo `json:"media_info,omitempty" db:"media_info"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

func (e *EpisodeStatus) Downloaded() bool {
	return e.FilePath != nil && *e.FilePath != ""
}

// MarkDownloadedParams carries everything mark_episode_downloaded persists.
type MarkDownloadedParams struct {
	AnimeID       int
	EpisodeNumber float64
	Season        int
	QualityID     int
	IsSeadex      bool
	ReleaseGroup  string
	FilePath      string
	FileSize      int64
	MediaInfo     *MediaInfo
}

type EpisodeMetadata struct {
	AnimeID             int             `json:"anime_id" db:"anime_id"`
	Number              float64         `json:"number" db:"number"`
	Title               *string         `json:"title,omitempty" db:"title"`
	TitleJapanese       *string         `json:"title_japanese,omitempty" db:"title_japanese"`
	Aired               *time.Time      `json:"aired,omitempty" db:"aired"`
	TitleSource         *MetadataSource `json:"title_source,omitempty" db:"title_source"`
	TitleJapaneseSource *MetadataSource `json:"title_japanese_source,omitempty" db:"title_japanese_source"`
	AiredSource         *MetadataSource `json:"aired_source,omitempty" db:"aired_source"`
}

// EpisodeView joins status and metadata for listings.
type EpisodeView struct {
	EpisodeStatus
	Title *string `json:"title,omitempty"`
}

// ──────────────────── Profiles ────────────────────

type QualityProfile struct {
	ID               uuid.UUID `json:"id" db:"id" yaml:"-"`
	Name             string    `json:"name" db:"name" yaml:"name"`
	Cutoff           string    `json:"cutoff" db:"cutoff" yaml:"cutoff"`
	UpgradeAllowed   bool      `json:"upgrade_allowed" db:"upgrade_allowed" yaml:"upgrade_allowed"`
	SeadexPreferred  bool      `json:"seadex_preferred" db:"seadex_preferred" yaml:"seadex_preferred"`
	AllowedQualities []string  `json:"allowed_qualities" db:"allowed_qualities" yaml:"allowed_qualities"`
	MinSize          *int64    `json:"min_size,omitempty" db:"min_size" yaml:"min_size,omitempty"`
	MaxSize          *int64    `json:"max_size,omitempty" db:"max_size" yaml:"max_size,omitempty"`
}

type ReleaseRule struct {
	Term     string   `json:"term" db:"term" yaml:"term"`
	Score    int      `json:"score" db:"score" yaml:"score"`
	RuleType RuleType `json:"rule_type" db:"rule_type" yaml:"type"`
}

type ReleaseProfile struct {
	ID       uuid.UUID     `json:"id" db:"id" yaml:"-"`
	Name     string        `json:"name" db:"name" yaml:"name"`
	Enabled  bool          `json:"enabled" db:"enabled" yaml:"enabled"`
	Global   bool          `json:"global" db:"global" yaml:"global"`
	AnimeIDs []int         `json:"anime_ids,omitempty" db:"-" yaml:"anime_ids,omitempty"`
	Rules    []ReleaseRule `json:"rules" db:"-" yaml:"rules"`
}

// ──────────────────── Rename ────────────────────

type RenamePreviewItem struct {
	AnimeID         int     `json:"anime_id"`
	EpisodeNumber   float64 `json:"episode_number"`
	CurrentPath     string  `json:"current_path"`
	DestinationPath string  `json:"destination_path"`
}

type RenameResult struct {
	Renamed  int      `json:"renamed"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures"`
}

// ──────────────────── Recycle Bin ────────────────────

type RecycledFile struct {
	ID            uuid.UUID `json:"id" db:"id"`
	OriginalPath  string    `json:"original_path" db:"original_path"`
	RecycledPath  string    `json:"recycled_path" db:"recycled_path"`
	Size          int64     `json:"size" db:"size"`
	AnimeID       *int      `json:"anime_id,omitempty" db:"anime_id"`
	EpisodeNumber *float64  `json:"episode_number,omitempty" db:"episode_number"`
	DeletedAt     time.Time `json:"deleted_at" db:"deleted_at"`
}

// ──────────────────── Scans ────────────────────

type ScanResult struct {
	ScanID        uuid.UUID `json:"scan_id"`
	FilesFound    int       `json:"files_found"`
	FilesImported int       `json:"files_imported"`
	FilesSkipped  int       `json:"files_skipped"`
	Unmatched     []string  `json:"unmatched"`
	Errors        []string  `json:"errors"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

type FolderSuggestion struct {
	AnimeID      int     `json:"anime_id"`
	TitleRomaji  string  `json:"title_romaji"`
	TitleEnglish *string `json:"title_english,omitempty"`
	Format       string  `json:"format,omitempty"`
	EpisodeCount *int    `json:"episode_count,omitempty"`
	CoverImage   *string `json:"cover_image,omitempty"`
}

type UnmappedFolder struct {
	Path        string             `json:"path"`
	Name        string             `json:"name"`
	Suggestions []FolderSuggestion `json:"suggestions"`
}
