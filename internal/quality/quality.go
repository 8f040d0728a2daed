package quality

import (
	"strings"

	"github.com/JustinTDCT/AnimeVault/internal/parser"
)

// Source families.
const (
	SourceHDTV   = "HDTV"
	SourceWEBRip = "WEBRip"
	SourceWEB    = "WEB"
	SourceDVD    = "DVD"
	SourceBD     = "BD"
)

// Quality is one entry of the static ranked table.
type Quality struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Source     string `json:"source"`
	Resolution int    `json:"resolution"`
	Rank       int    `json:"rank"`
}

var Unknown = Quality{ID: 0, Name: "Unknown", Rank: 0}

// table is ordered by rank; IDs are stable and persisted in episode_status.
var table = []Quality{
	Unknown,
	{ID: 1, Name: "HDTV 480p", Source: SourceHDTV, Resolution: 480, Rank: 1},
	{ID: 2, Name: "WEB 480p", Source: SourceWEB, Resolution: 480, Rank: 2},
	{ID: 3, Name: "DVD 480p", Source: SourceDVD, Resolution: 480, Rank: 3},
	{ID: 4, Name: "HDTV 720p", Source: SourceHDTV, Resolution: 720, Rank: 4},
	{ID: 5, Name: "WEBRip 720p", Source: SourceWEBRip, Resolution: 720, Rank: 5},
	{ID: 6, Name: "WEB 720p", Source: SourceWEB, Resolution: 720, Rank: 6},
	{ID: 7, Name: "BD 720p", Source: SourceBD, Resolution: 720, Rank: 7},
	{ID: 8, Name: "HDTV 1080p", Source: SourceHDTV, Resolution: 1080, Rank: 8},
	{ID: 9, Name: "WEBRip 1080p", Source: SourceWEBRip, Resolution: 1080, Rank: 9},
	{ID: 10, Name: "WEB 1080p", Source: SourceWEB, Resolution: 1080, Rank: 10},
	{ID: 11, Name: "BD 1080p", Source: SourceBD, Resolution: 1080, Rank: 11},
	{ID: 12, Name: "HDTV 2160p", Source: SourceHDTV, Resolution: 2160, Rank: 12},
	{ID: 13, Name: "WEBRip 2160p", Source: SourceWEBRip, Resolution: 2160, Rank: 13},
	{ID: 14, Name: "WEB 2160p", Source: SourceWEB, Resolution: 2160, Rank: 14},
	{ID: 15, Name: "BD 2160p", Source: SourceBD, Resolution: 2160, Rank: 15},
}

var (
	byName = make(map[string]Quality, len(table))
	byID   = make(map[int]Quality, len(table))
)

func init() {
	for _, q := range table {
		byName[strings.ToLower(q.Name)] = q
		byID[q.ID] = q
	}
}

// All returns the full table including Unknown.
func All() []Quality {
	out := make([]Quality, len(table))
	copy(out, table)
	return out
}

// Listed returns the user-facing qualities (Unknown excluded).
func Listed() []Quality {
	out := make([]Quality, 0, len(table)-1)
	for _, q := range table {
		if q.ID != Unknown.ID {
			out = append(out, q)
		}
	}
	return out
}

// ByName looks a quality up case-insensitively.
func ByName(name string) (Quality, bool) {
	q, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return q, ok
}

// ByID returns Unknown for ids outside the table.
func ByID(id int) Quality {
	if q, ok := byID[id]; ok {
		return q
	}
	return Unknown
}

func lookup(source string, resolution int) Quality {
	for _, q := range table {
		if q.Source == source && q.Resolution == resolution {
			return q
		}
	}
	return Unknown
}

// Classify maps filename or tag text onto the table using the same
// resolution and source vocabularies as the parser.
func Classify(text string) Quality {
	return FromTags(parser.ExtractResolution(text), parser.ExtractSource(text))
}

// FromRelease classifies an already-parsed release.
func FromRelease(rel parser.Release) Quality {
	return FromTags(rel.Resolution, rel.Source)
}

// FromTags classifies normalized resolution and source tags. A bare
// resolution is assumed to be a web release; a bare DVD tag is DVD 480p.
func FromTags(resolution, source string) Quality {
	family := sourceFamily(source)
	res := resolutionValue(resolution)

	switch {
	case res == 0 && family == SourceDVD:
		return lookup(SourceDVD, 480)
	case res == 0:
		return Unknown
	case family == "":
		family = SourceWEB
	}
	if family == SourceDVD {
		res = 480
	}
	return lookup(family, res)
}

// FromResolution classifies probe output ("1080p", "4K", "SD") for files
// whose names carry no tags.
func FromResolution(resolution string) Quality {
	if strings.EqualFold(resolution, "SD") {
		return lookup(SourceWEB, 480)
	}
	return FromTags(resolution, "")
}

func sourceFamily(source string) string {
	switch strings.ToUpper(source) {
	case "BD", "BDRIP":
		return SourceBD
	case "WEB", "AMZN", "CR", "DSNP", "NF", "HMAX":
		return SourceWEB
	case "WEBRIP":
		return SourceWEBRip
	case "HDTV":
		return SourceHDTV
	case "DVDRIP", "DVD":
		return SourceDVD
	}
	return ""
}

func resolutionValue(resolution string) int {
	switch strings.ToLower(resolution) {
	case "480p", "576p":
		return 480
	case "720p":
		return 720
	case "1080p":
		return 1080
	case "2160p", "4k":
		return 2160
	}
	return 0
}
