package parser

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	epPattern  = `(?P<ep>\d{1,4}(?:\.\d{1,2})?)`
	verPattern = `(?:v(?P<ver>\d{1,2}))?`
)

var (
	// [Group] Title - 01v2 [1080p]
	bracketDashRe = regexp.MustCompile(
		`^\[(?P<group>[^\]]+)\]\s*(?P<title>.+?)\s+-\s+` + epPattern + verPattern +
			`(?:\s*(?P<tags>[\[\(].*[\]\)]))?\s*$`)

	// [Group] Title S02E05 [1080p]
	bracketSeasonEpisodeRe = regexp.MustCompile(
		`(?i)^\[(?P<group>[^\]]+)\]\s*(?P<title>.+?)[\s._-]+S(?P<season>\d{1,2})E` + epPattern + verPattern +
			`(?P<tags>.*)$`)

	// Title - S02E05 ...
	plainSeasonEpisodeRe = regexp.MustCompile(
		`(?i)^(?P<title>[^\[].*?)\s+-\s+S(?P<season>\d{1,2})E` + epPattern + verPattern + `(?P<tags>.*)$`)

	// Title (2023) - S01E01 - Episode Title [WEBDL-1080p]
	plexStyleRe = regexp.MustCompile(
		`(?i)^(?P<title>[^\[].*?)(?:\s*\((?P<year>\d{4})\))?\s+-\s+S(?P<season>\d{1,2})E` + epPattern + verPattern +
			`(?:\s+-\s+(?P<eptitle>.*?))?\s*(?P<tags>(?:[\[\(][^\]\)]*[\]\)]\s*)*)$`)

	// Title.Name.S01E01.1080p.WEB.x264-GROUP
	dotSceneRe = regexp.MustCompile(
		`(?i)^(?P<title>[^\s\[\]]+?)[._]S(?P<season>\d{1,2})E` + epPattern + verPattern + `(?:[._-](?P<tags>.*))?$`)

	// Title - 05 (1080p) [Group]
	trailingGroupRe = regexp.MustCompile(
		`^(?P<title>[^\[].*?)\s+-\s+` + epPattern + verPattern +
			`\s*(?P<tags>(?:\([^)]*\)\s*)*)\[(?P<group>[^\]]+)\]$`)

	yearTailRe     = regexp.MustCompile(`\(\d{4}\)\s*$`)
	leadingGroupRe = regexp.MustCompile(`^\s*\[(?P<group>[^\]]*)\]\s*`)

	fallbackPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s-\s*(\d{1,4}(?:\.\d{1,2})?)(?:v(\d{1,2}))?`),
		regexp.MustCompile(`(?i)(?:^|[\s._\[\(-])(?:episode|ep|e)[\s._]?(\d{1,4}(?:\.\d{1,2})?)(?:v(\d{1,2}))?`),
		regexp.MustCompile(`(?:^|[\s_])(\d{1,4})(?:v(\d{1,2}))?`),
	}
)

type bracketDash struct{}

func (bracketDash) Name() string { return "bracket_dash" }

func (bracketDash) Parse(stem string) (Release, bool) {
	c := captures(bracketDashRe, stem)
	if c == nil {
		return Release{}, false
	}
	return fromCaptures(c, stem), true
}

type bracketSeasonEpisode struct{}

func (bracketSeasonEpisode) Name() string { return "bracket_season_episode" }

func (bracketSeasonEpisode) Parse(stem string) (Release, bool) {
	c := captures(bracketSeasonEpisodeRe, stem)
	if c == nil {
		return Release{}, false
	}
	return fromCaptures(c, stem), true
}

type plainSeasonEpisode struct{}

func (plainSeasonEpisode) Name() string { return "plain_season_episode" }

func (plainSeasonEpisode) Parse(stem string) (Release, bool) {
	c := captures(plainSeasonEpisodeRe, stem)
	if c == nil || yearTailRe.MatchString(c["title"]) {
		return Release{}, false
	}
	rel := fromCaptures(c, stem)
	rel.Group = ExtractGroup(c["tags"])
	return rel, true
}

type plexStyle struct{}

func (plexStyle) Name() string { return "plex" }

func (plexStyle) Parse(stem string) (Release, bool) {
	c := captures(plexStyleRe, stem)
	if c == nil {
		return Release{}, false
	}
	rel := fromCaptures(c, stem)
	rel.Group = ExtractGroup(c["tags"])
	return rel, true
}

type dotScene struct{}

func (dotScene) Name() string { return "dot_scene" }

func (dotScene) Parse(stem string) (Release, bool) {
	c := captures(dotSceneRe, stem)
	if c == nil {
		return Release{}, false
	}
	c["title"] = strings.ReplaceAll(c["title"], ".", " ")
	rel := fromCaptures(c, stem)
	rel.Group = ExtractGroup(c["tags"])
	return rel, true
}

type trailingGroup struct{}

func (trailingGroup) Name() string { return "trailing_group" }

func (trailingGroup) Parse(stem string) (Release, bool) {
	c := captures(trailingGroupRe, stem)
	if c == nil || IsMetadata(c["group"]) {
		return Release{}, false
	}
	return fromCaptures(c, stem), true
}

// fallback scans for a bare episode number, skipping years and resolutions.
type fallback struct{}

func (fallback) Name() string { return "fallback" }

func (fallback) Parse(stem string) (Release, bool) {
	for _, re := range fallbackPatterns {
		for _, m := range re.FindAllStringSubmatchIndex(stem, -1) {
			if !tokenBoundary(stem, m[1]) {
				continue
			}
			num := stem[m[2]:m[3]]
			if looksLikeYearOrResolution(num) {
				continue
			}
			title, group := splitLeadingGroup(stem[:m[0]])
			if CleanTitle(title) == "" {
				continue
			}
			rel := Release{
				Title:         title,
				EpisodeNumber: parseEpisode(num),
				Group:         group,
				Resolution:    ExtractResolution(stem),
				Source:        ExtractSource(stem),
			}
			if m[4] >= 0 {
				rel.Version = parseVersion(stem[m[4]:m[5]])
			}
			return rel, true
		}
	}
	return Release{}, false
}

// tokenBoundary reports whether the match ending at end is not glued to
// a following letter or digit ("1080p", "12abc").
func tokenBoundary(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	switch s[end] {
	case ' ', '_', '.', ',', '-', '[', ']', '(', ')':
		return true
	}
	return false
}

var resolutionNumbers = map[int]bool{480: true, 576: true, 720: true, 1080: true, 2160: true}

func looksLikeYearOrResolution(num string) bool {
	whole := num
	if i := strings.IndexByte(num, '.'); i >= 0 {
		whole = num[:i]
	}
	n, err := strconv.Atoi(whole)
	if err != nil {
		return true
	}
	if len(whole) == 4 && n >= 1990 && n <= 2099 {
		return true
	}
	return resolutionNumbers[n]
}

func splitLeadingGroup(s string) (title, group string) {
	if m := leadingGroupRe.FindStringSubmatchIndex(s); m != nil {
		return s[m[1]:], strings.TrimSpace(s[m[2]:m[3]])
	}
	return s, ""
}
