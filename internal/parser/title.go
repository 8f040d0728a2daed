package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	titleSeparators = " -_.~,:;|"
	trailingPunct   = " -_.~,:;|!?'\""
)

var (
	spaceUnderscoreRe = regexp.MustCompile(`[_\s]+`)
	trailingYearRe    = regexp.MustCompile(`\s*\((?:19|20)\d{2}\)$`)

	seasonWordRe    = regexp.MustCompile(`(?i)\b(?:season\s*(\d{1,2})|s(\d{1,2}))\b`)
	ordinalSeasonRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\s+season\b`)
	partRe          = regexp.MustCompile(`(?i)\bpart\s*(\d{1,2}|viii|vii|vi|iv|ix|v|x|iii|ii|i)\b`)
	courRe          = regexp.MustCompile(`(?i)\bcour\s*(\d{1,2})\b`)
	trailingRomanRe = regexp.MustCompile(`\s(II|III|IV|V|VI|VII|VIII|IX|X)$`)

	seasonSuffixRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*\b(?:season\s*\d{1,2}|s\d{1,2})$`),
		regexp.MustCompile(`(?i)\s*\b\d{1,2}(?:st|nd|rd|th)\s+season$`),
		regexp.MustCompile(`(?i)\s*\bpart\s*(?:\d{1,2}|viii|vii|vi|iv|ix|v|x|iii|ii|i)$`),
		regexp.MustCompile(`(?i)\s*\bcour\s*\d{1,2}$`),
		regexp.MustCompile(`\s*[\(\[](?:19|20)\d{2}[\)\]]$`),
		regexp.MustCompile(`\s+(?:II|III|IV|V|VI|VII|VIII|IX|X)$`),
	}
)

var romanNumerals = map[string]int{
	"I": 1, "II": 2, "III": 3, "IV": 4, "V": 5,
	"VI": 6, "VII": 7, "VIII": 8, "IX": 9, "X": 10,
}

// CleanTitle trims separators, folds underscores and whitespace runs into
// single spaces and drops a trailing year parenthetical. It is applied until
// the result stops changing, so CleanTitle(CleanTitle(s)) == CleanTitle(s).
func CleanTitle(s string) string {
	for {
		next := cleanOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func cleanOnce(s string) string {
	s = spaceUnderscoreRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, titleSeparators)
	s = trailingYearRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// DetectSeasonFromTitle looks for season markers inside a title:
// "Season 2", "S2", "2nd Season", "Part 2", "Part II", "Cour 2" and a
// trailing roman numeral. It returns nil when the title carries none.
func DetectSeasonFromTitle(title string) *int {
	if m := seasonWordRe.FindStringSubmatch(title); m != nil {
		n := m[1]
		if n == "" {
			n = m[2]
		}
		return atoiPtr(n)
	}
	if m := ordinalSeasonRe.FindStringSubmatch(title); m != nil {
		return atoiPtr(m[1])
	}
	if m := partRe.FindStringSubmatch(title); m != nil {
		if n, ok := romanNumerals[strings.ToUpper(m[1])]; ok {
			return &n
		}
		return atoiPtr(m[1])
	}
	if m := courRe.FindStringSubmatch(title); m != nil {
		return atoiPtr(m[1])
	}
	if m := trailingRomanRe.FindStringSubmatch(title); m != nil {
		n := romanNumerals[m[1]]
		return &n
	}
	return nil
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// StripSeasonSuffix removes trailing season, part, cour, year and roman
// numeral markers along with trailing punctuation.
func StripSeasonSuffix(title string) string {
	s := strings.TrimSpace(title)
	for {
		prev := s
		for _, re := range seasonSuffixRes {
			s = re.ReplaceAllString(s, "")
		}
		s = strings.TrimRight(s, trailingPunct)
		if s == prev {
			return s
		}
	}
}

// NormalizeForMatching derives the comparison key used for containment
// checks: season suffixes stripped, diacritics folded, lowercased, with
// punctuation reduced to single spaces. Never use it for display.
func NormalizeForMatching(title string) string {
	s := title
	for {
		next := foldKey(StripSeasonSuffix(s))
		if next == s {
			return s
		}
		s = next
	}
}

// MatchKey folds case, diacritics and punctuation but keeps season markers,
// so "Re:Zero II" and "Re Zero II" agree while "Re Zero" stays distinct.
func MatchKey(title string) string {
	return foldKey(title)
}

func foldKey(s string) string {
	// Transformers and casers carry state; build them per call.
	lowered := cases.Lower(language.Und).String(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, lowered)
	if err != nil {
		folded = lowered
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		switch {
		case r == '\'' || r == '’' || r == '`':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
