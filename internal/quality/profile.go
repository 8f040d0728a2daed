package quality

import (
	"fmt"
	"strings"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/models"
)

// ValidateProfile checks that every allowed quality resolves, that the
// cutoff is one of them and that the size bounds are ordered.
func ValidateProfile(p models.QualityProfile) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: profile name is required", apperr.ErrValidation)
	}
	if len(p.AllowedQualities) == 0 {
		return fmt.Errorf("%w: profile %q allows no qualities", apperr.ErrValidation, p.Name)
	}
	seen := make(map[string]bool, len(p.AllowedQualities))
	for _, name := range p.AllowedQualities {
		q, ok := ByName(name)
		if !ok || q.ID == Unknown.ID {
			return fmt.Errorf("%w: profile %q: unknown quality %q", apperr.ErrValidation, p.Name, name)
		}
		if seen[q.Name] {
			return fmt.Errorf("%w: profile %q: quality %q listed twice", apperr.ErrValidation, p.Name, name)
		}
		seen[q.Name] = true
	}
	if position(p, mustByName(p.Cutoff)) < 0 {
		return fmt.Errorf("%w: profile %q: cutoff %q is not an allowed quality", apperr.ErrValidation, p.Name, p.Cutoff)
	}
	if p.MinSize != nil && p.MaxSize != nil && *p.MinSize > *p.MaxSize {
		return fmt.Errorf("%w: profile %q: min_size exceeds max_size", apperr.ErrValidation, p.Name)
	}
	return nil
}

func mustByName(name string) Quality {
	q, _ := ByName(name)
	return q
}

// position returns the index of q in the profile's allowed list, or -1.
func position(p models.QualityProfile, q Quality) int {
	if q.ID == Unknown.ID {
		return -1
	}
	for i, name := range p.AllowedQualities {
		if strings.EqualFold(strings.TrimSpace(name), q.Name) {
			return i
		}
	}
	return -1
}

// Allows reports whether q is a member of the profile.
func Allows(p models.QualityProfile, q Quality) bool {
	return position(p, q) >= 0
}

func sizeInBounds(p models.QualityProfile, size int64) bool {
	if size <= 0 {
		return true
	}
	if p.MinSize != nil && size < *p.MinSize {
		return false
	}
	if p.MaxSize != nil && size > *p.MaxSize {
		return false
	}
	return true
}
