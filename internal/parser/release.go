package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Release is the structured form of a free-text release filename.
type Release struct {
	OriginalFilename string  `json:"original_filename"`
	Title            string  `json:"title"`
	EpisodeNumber    float64 `json:"episode_number"`
	Season           *int    `json:"season,omitempty"`
	Group            string  `json:"group,omitempty"`
	Resolution       string  `json:"resolution,omitempty"`
	Source           string  `json:"source,omitempty"`
	Version          *int    `json:"version,omitempty"`
	Strategy         string  `json:"strategy"`
}

// IsRevised reports whether the release is a re-upload (v2 or later).
func (r Release) IsRevised() bool {
	return r.Version != nil && *r.Version > 1
}

// SeasonOrDefault returns the detected season, or 1 when none was found.
func (r Release) SeasonOrDefault() int {
	if r.Season == nil {
		return 1
	}
	return *r.Season
}

// Strategy attempts to parse a filename stem (extension already removed).
// Implementations fill Title, EpisodeNumber and whatever tags they can see;
// title cleaning and season detection happen once in ParseWith.
type Strategy interface {
	Name() string
	Parse(stem string) (Release, bool)
}

var defaultStrategies = []Strategy{
	bracketDash{},
	bracketSeasonEpisode{},
	plainSeasonEpisode{},
	plexStyle{},
	dotScene{},
	trailingGroup{},
	fallback{},
}

// Strategies returns the cascade in priority order.
func Strategies() []Strategy {
	out := make([]Strategy, len(defaultStrategies))
	copy(out, defaultStrategies)
	return out
}

// Parse runs the default cascade. A false result means the name is not a release.
func Parse(filename string) (Release, bool) {
	return ParseWith(defaultStrategies, filename)
}

// ParseWith runs the given strategies in order and returns the first usable result.
func ParseWith(strategies []Strategy, filename string) (Release, bool) {
	name := strings.TrimSpace(filename)
	stem := StripMediaExt(name)
	if stem == "" {
		return Release{}, false
	}

	for _, s := range strategies {
		rel, ok := s.Parse(stem)
		if !ok {
			continue
		}
		rel.Title = CleanTitle(rel.Title)
		if rel.Title == "" || rel.EpisodeNumber < 0 {
			continue
		}
		if rel.Version != nil && *rel.Version < 1 {
			rel.Version = nil
		}
		if rel.Season == nil {
			rel.Season = DetectSeasonFromTitle(rel.Title)
		}
		rel.OriginalFilename = name
		rel.Strategy = s.Name()
		return rel, true
	}
	return Release{}, false
}

var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".m4v": true, ".mov": true,
	".wmv": true, ".webm": true, ".ts": true, ".m2ts": true, ".flv": true,
	".ogm": true, ".mpg": true, ".mpeg": true,
}

// IsVideoFile reports whether the path has a known video extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// StripMediaExt removes a trailing video extension. Other dotted suffixes
// are left alone so scene names like "Title.S01E01.1080p" survive.
func StripMediaExt(name string) string {
	ext := filepath.Ext(name)
	if videoExtensions[strings.ToLower(ext)] {
		return strings.TrimSpace(name[:len(name)-len(ext)])
	}
	return name
}

// captures returns the named submatches of re against s, or nil on no match.
func captures(re *regexp.Regexp, s string) map[string]string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if name != "" {
			out[name] = m[i]
		}
	}
	return out
}

// fromCaptures builds a release from the common capture names. Tags are read
// from the captured tag block when present, otherwise from the whole stem.
func fromCaptures(c map[string]string, stem string) Release {
	rel := Release{
		Title:         c["title"],
		EpisodeNumber: parseEpisode(c["ep"]),
		Version:       parseVersion(c["ver"]),
		Group:         strings.TrimSpace(c["group"]),
	}
	if s := c["season"]; s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			rel.Season = &n
		}
	}
	tags := strings.TrimSpace(c["tags"])
	if tags == "" {
		tags = stem
	}
	rel.Resolution = ExtractResolution(tags)
	rel.Source = ExtractSource(tags)
	return rel
}

func parseEpisode(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return -1
	}
	return f
}

func parseVersion(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
