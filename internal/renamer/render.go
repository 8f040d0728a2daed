// Package renamer computes canonical library paths and moves episode files
// onto them.
package renamer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const DefaultPattern = "{Series Title} - S{Season:00}E{Episode:00} - {Episode Title} [{Quality}]"

// Tokens are the values a naming pattern can reference.
type Tokens struct {
	SeriesTitle  string
	Year         int
	Season       int
	Episode      float64
	EpisodeTitle string
	Quality      string
	Group        string
}

var (
	invalidCharsRe  = regexp.MustCompile(`[<>"|?*\x00-\x1f]`)
	emptyBracketsRe = regexp.MustCompile(`\[\s*\]|\(\s*\)|\{\s*\}`)
	repeatedDashRe  = regexp.MustCompile(`\s*-(\s*-)+\s*`)
	danglingDashRe  = regexp.MustCompile(`\s+-\s+([\[(])`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	yearParenRe     = regexp.MustCompile(`\((\d{4})\)`)
)

// Render substitutes tokens into pattern and returns a relative path whose
// segments are safe file names. Segments left empty by missing tokens are
// dropped.
func Render(pattern string, t Tokens) string {
	if pattern == "" {
		pattern = DefaultPattern
	}
	year := ""
	if t.Year > 0 {
		year = strconv.Itoa(t.Year)
	}
	season := t.Season
	if season < 1 {
		season = 1
	}

	r := strings.NewReplacer(
		"{Series Title}", seriesTitle(t.SeriesTitle, year),
		"{Year}", year,
		"{Season:00}", fmt.Sprintf("%02d", season),
		"{Season}", strconv.Itoa(season),
		"{Episode:00}", formatEpisode(t.Episode, 2),
		"{Episode}", formatEpisode(t.Episode, 0),
		"{Episode Title}", t.EpisodeTitle,
		"{Quality}", t.Quality,
		"{Group}", t.Group,
	)
	rendered := r.Replace(pattern)

	var segments []string
	for _, seg := range strings.Split(strings.ReplaceAll(rendered, "\\", "/"), "/") {
		if seg = cleanSegment(seg); seg != "" {
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, "/")
}

// seriesTitle drops a trailing year parenthetical equal to the Year token so
// "{Series Title} ({Year})" never doubles it.
func seriesTitle(title, year string) string {
	title = strings.TrimSpace(title)
	if year != "" {
		title = strings.TrimSpace(strings.TrimSuffix(title, "("+year+")"))
	}
	return title
}

func formatEpisode(ep float64, width int) string {
	whole, frac := math.Modf(ep)
	s := fmt.Sprintf("%0*d", width, int(whole))
	if frac > 0 {
		s += strings.TrimPrefix(strconv.FormatFloat(frac, 'f', -1, 64), "0")
	}
	return s
}

func cleanSegment(seg string) string {
	seg = strings.ReplaceAll(seg, ": ", " - ")
	seg = strings.ReplaceAll(seg, ":", "-")
	seg = invalidCharsRe.ReplaceAllString(seg, "")

	for {
		prev := seg
		seg = emptyBracketsRe.ReplaceAllString(seg, "")
		seg = repeatedDashRe.ReplaceAllString(seg, " - ")
		seg = danglingDashRe.ReplaceAllString(seg, " $1")
		seg = whitespaceRe.ReplaceAllString(seg, " ")
		seg = collapseDuplicateYears(seg)
		seg = strings.Trim(seg, " -_.")
		if seg == prev {
			return seg
		}
	}
}

// collapseDuplicateYears turns "(2023) (2023)" into "(2023)". RE2 has no
// backreferences, so adjacent year groups are compared by hand.
func collapseDuplicateYears(s string) string {
	locs := yearParenRe.FindAllStringSubmatchIndex(s, -1)
	for i := len(locs) - 1; i > 0; i-- {
		prev, cur := locs[i-1], locs[i]
		if strings.TrimSpace(s[prev[1]:cur[0]]) != "" {
			continue
		}
		if s[prev[2]:prev[3]] == s[cur[2]:cur[3]] {
			s = s[:prev[1]] + s[cur[1]:]
		}
	}
	return s
}
