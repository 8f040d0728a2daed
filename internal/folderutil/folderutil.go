// Package folderutil decides which directory names carry a series title and
// which are generic containers (season folders, extras) to look past.
package folderutil

import (
	"regexp"
	"strings"

	"github.com/JustinTDCT/AnimeVault/internal/parser"
)

var (
	seasonFolderRe = regexp.MustCompile(`(?i)^season`)
	shortSeasonRe  = regexp.MustCompile(`(?i)^s\d{1,2}$`)
	bracketTagRe   = regexp.MustCompile(`\[[^\]]*\]`)
)

var genericNames = map[string]bool{
	"specials": true,
	"special":  true,
	"ova":      true,
	"ovas":     true,
	"ona":      true,
	"extras":   true,
	"nc":       true,
}

// IsGeneric reports whether a folder name is a container rather than a title.
func IsGeneric(name string) bool {
	n := strings.TrimSpace(name)
	if n == "" {
		return true
	}
	if seasonFolderRe.MatchString(n) || shortSeasonRe.MatchString(n) {
		return true
	}
	return genericNames[strings.ToLower(n)]
}

// IsHidden reports dot-prefixed names.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// CleanName strips bracket tags from a folder name and cleans it like a title.
func CleanName(name string) string {
	return parser.CleanTitle(bracketTagRe.ReplaceAllString(name, " "))
}
