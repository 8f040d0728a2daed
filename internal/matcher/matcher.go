// Package matcher maps parsed releases onto the catalog of monitored anime.
package matcher

import (
	"path/filepath"
	"strings"

	"github.com/JustinTDCT/AnimeVault/internal/folderutil"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/parser"
)

const (
	closenessBase        = 100
	exactEqualBonus      = 500
	seasonMatchBonus     = 200
	seasonMismatch       = -200
	seasonlessDefault    = 100
	seasonlessNonDefault = -50
)

// MatchRelease finds the catalog entry for a release. When neither the
// release title nor any ancestor folder identifies an entry, the first
// meaningful ancestor folder name is returned as a suggestion with a nil
// anime. filePath and importRoot may be empty for releases not on disk.
func MatchRelease(rel parser.Release, catalog []*models.Anime, filePath, importRoot string) (*models.Anime, string) {
	if a := exactMatch(rel, catalog); a != nil {
		return a, ""
	}
	if a := bestCandidate(rel, catalog); a != nil {
		return a, ""
	}
	if filePath == "" {
		return nil, ""
	}
	return matchFolders(filePath, importRoot, catalog)
}

func exactMatch(rel parser.Release, catalog []*models.Anime) *models.Anime {
	key := parser.MatchKey(rel.Title)
	if key == "" {
		return nil
	}
	for _, a := range catalog {
		for _, title := range a.Titles() {
			if parser.MatchKey(title) == key {
				return a
			}
		}
	}
	return nil
}

func bestCandidate(rel parser.Release, catalog []*models.Anime) *models.Anime {
	relNorm := parser.NormalizeForMatching(rel.Title)
	if relNorm == "" {
		return nil
	}
	relSeason := rel.SeasonOrDefault()

	var best *models.Anime
	bestScore := 0
	for _, a := range catalog {
		score, ok := scoreEntry(a, relNorm, relSeason)
		if ok && (best == nil || score > bestScore) {
			best, bestScore = a, score
		}
	}
	return best
}

// scoreEntry scores the best of an entry's titles against the release.
func scoreEntry(a *models.Anime, relNorm string, relSeason int) (int, bool) {
	matched := false
	best := 0
	for _, title := range a.Titles() {
		norm := parser.NormalizeForMatching(title)
		if norm == "" || !(strings.Contains(norm, relNorm) || strings.Contains(relNorm, norm)) {
			continue
		}

		diff := len(norm) - len(relNorm)
		if diff < 0 {
			diff = -diff
		}
		score := closenessBase - min(closenessBase, diff)
		if norm == relNorm {
			score += exactEqualBonus
		}

		switch season := parser.DetectSeasonFromTitle(title); {
		case season != nil && *season == relSeason:
			score += seasonMatchBonus
		case season != nil:
			score += seasonMismatch
		case relSeason == 1:
			score += seasonlessDefault
		default:
			score += seasonlessNonDefault
		}

		if !matched || score > best {
			best = score
		}
		matched = true
	}
	return best, matched
}

// matchFolders walks from the file's parent up to, but not including, the
// import root.
func matchFolders(filePath, importRoot string, catalog []*models.Anime) (*models.Anime, string) {
	root := filepath.Clean(importRoot)
	guess := ""
	for dir := filepath.Dir(filepath.Clean(filePath)); ; dir = filepath.Dir(dir) {
		if importRoot != "" && (dir == root || !isWithin(dir, root)) {
			break
		}
		name := filepath.Base(dir)
		if name == "/" || name == "." || dir == filepath.Dir(dir) {
			break
		}
		if folderutil.IsGeneric(name) {
			continue
		}
		cleaned := folderutil.CleanName(name)
		if cleaned == "" {
			continue
		}
		key := parser.MatchKey(cleaned)
		for _, a := range catalog {
			for _, title := range a.Titles() {
				if parser.MatchKey(title) == key {
					return a, cleaned
				}
			}
		}
		if guess == "" {
			guess = cleaned
		}
	}
	return nil, guess
}

func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
