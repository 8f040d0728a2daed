package quality

import (
	"strings"

	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/parser"
)

const (
	// QualityWeight keeps the quality position dominant over preferred terms.
	QualityWeight = 1000
	SeadexBonus   = 500
)

type Reason string

const (
	ReasonAccepted          Reason = "accepted"
	ReasonQualityNotAllowed Reason = "quality_not_allowed"
	ReasonMustNotMatched    Reason = "must_not_matched"
	ReasonMustMissing       Reason = "must_missing"
	ReasonSizeOutOfRange    Reason = "size_out_of_range"
	ReasonNoUpgrade         Reason = "no_upgrade_available"
)

// Candidate is a release under consideration.
type Candidate struct {
	Release  parser.Release
	Quality  Quality
	Size     int64
	IsSeadex bool
}

// Decision explains an accept/reject outcome. Rule holds the term that
// triggered a must/must-not rejection.
type Decision struct {
	Accepted bool   `json:"accepted"`
	Score    int64  `json:"score"`
	Reason   Reason `json:"reason"`
	Rule     string `json:"rule,omitempty"`
	Quality  string `json:"quality"`
}

func reject(reason Reason, q Quality) Decision {
	return Decision{Reason: reason, Quality: q.Name}
}

// Score gates a candidate on quality membership, must/must-not rules and
// size, then scores what passes.
func Score(c Candidate, profile models.QualityProfile, rules []models.ReleaseRule) Decision {
	pos := position(profile, c.Quality)
	if pos < 0 {
		return reject(ReasonQualityNotAllowed, c.Quality)
	}

	haystack := strings.ToLower(c.Release.Title + "\x00" + c.Release.Group + "\x00" + c.Release.OriginalFilename)
	for _, r := range rules {
		if r.RuleType == models.RuleMustNot && containsTerm(haystack, r.Term) {
			d := reject(ReasonMustNotMatched, c.Quality)
			d.Rule = r.Term
			return d
		}
	}
	for _, r := range rules {
		if r.RuleType == models.RuleMust && !containsTerm(haystack, r.Term) {
			d := reject(ReasonMustMissing, c.Quality)
			d.Rule = r.Term
			return d
		}
	}
	if !sizeInBounds(profile, c.Size) {
		return reject(ReasonSizeOutOfRange, c.Quality)
	}

	score := int64(pos+1) * QualityWeight
	for _, r := range rules {
		if r.RuleType == models.RulePreferred && containsTerm(haystack, r.Term) {
			score += int64(r.Score)
		}
	}
	if profile.SeadexPreferred && c.IsSeadex {
		score += SeadexBonus
	}
	return Decision{Accepted: true, Score: score, Reason: ReasonAccepted, Quality: c.Quality.Name}
}

func containsTerm(haystack, term string) bool {
	t := strings.ToLower(strings.TrimSpace(term))
	return t != "" && strings.Contains(haystack, t)
}

// CheckUpgrade decides whether candidate should replace an existing file.
// Upgrading stops once the existing quality has reached the cutoff.
func CheckUpgrade(profile models.QualityProfile, existing, candidate Quality, existingSize, candidateSize int64) Decision {
	if !Allows(profile, candidate) {
		return reject(ReasonQualityNotAllowed, candidate)
	}
	if !sizeInBounds(profile, existingSize) || !sizeInBounds(profile, candidateSize) {
		return reject(ReasonSizeOutOfRange, candidate)
	}
	cutoff, ok := ByName(profile.Cutoff)
	if !profile.UpgradeAllowed || !ok {
		return reject(ReasonNoUpgrade, candidate)
	}
	if candidate.Rank <= existing.Rank || existing.Rank >= cutoff.Rank || candidate.Rank > cutoff.Rank {
		return reject(ReasonNoUpgrade, candidate)
	}
	return Decision{Accepted: true, Reason: ReasonAccepted, Quality: candidate.Name}
}

// Decide scores a candidate and, when the episode already has a file,
// additionally requires it to be a permitted upgrade.
func Decide(c Candidate, profile models.QualityProfile, rules []models.ReleaseRule, existing *models.EpisodeStatus) Decision {
	d := Score(c, profile, rules)
	if !d.Accepted || existing == nil || !existing.Downloaded() {
		return d
	}

	current := Unknown
	if existing.QualityID != nil {
		current = ByID(*existing.QualityID)
	}
	var currentSize int64
	if existing.FileSize != nil {
		currentSize = *existing.FileSize
	}
	up := CheckUpgrade(profile, current, c.Quality, currentSize, c.Size)
	if !up.Accepted {
		return up
	}
	return d
}

// EnabledRules flattens the enabled profiles into one ordered rule list.
func EnabledRules(profiles []models.ReleaseProfile) []models.ReleaseRule {
	var out []models.ReleaseRule
	for _, p := range profiles {
		if p.Enabled {
			out = append(out, p.Rules...)
		}
	}
	return out
}
