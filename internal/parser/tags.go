package parser

import (
	"regexp"
	"strings"
)

var (
	resolutionRe = regexp.MustCompile(`(?i)\b(480p|576p|720p|1080p|2160p|4k)\b`)
	sourceRe     = regexp.MustCompile(`(?i)\b(blu-?ray|bdrip|bd|web-?dl|webrip|web|hdtv|dvdrip|amzn|cr|dsnp|nf|hmax)\b`)
	codecRe      = regexp.MustCompile(`(?i)\b(x264|x265|hevc|av1|aac|flac|e?ac3|dts|truehd|opus|h\.?26[45]|10-?bit|hdr|remux|dv)\b`)
	crcRe        = regexp.MustCompile(`^[0-9A-Fa-f]{8}$`)

	// Hyphenated tags whose dash must not be mistaken for a group separator.
	hyphenatedTagRe = regexp.MustCompile(`(?i)\b(web-dl|blu-ray|10-bit)\b`)
	bracketTokenRe  = regexp.MustCompile(`[\[\(]([^\]\)\[\(]+)[\]\)]`)
)

// Lower number wins when several sources appear in one name.
var sourcePriority = map[string]int{
	"BD": 0, "BDRIP": 1, "WEB": 2, "WEBRIP": 3, "HDTV": 4, "DVDRIP": 5,
}

// ExtractResolution returns the first resolution tag: "4K" or a lowercased value.
func ExtractResolution(text string) string {
	m := resolutionRe.FindStringSubmatch(strings.ReplaceAll(text, "_", " "))
	if m == nil {
		return ""
	}
	if strings.EqualFold(m[1], "4k") {
		return "4K"
	}
	return strings.ToLower(m[1])
}

// ExtractSource returns the normalized source tag. BD, WEB and WEBRIP are
// canonical; other recognised tags keep the case they were written in.
func ExtractSource(text string) string {
	matches := sourceRe.FindAllStringSubmatch(strings.ReplaceAll(text, "_", " "), -1)
	best, bestRank := "", len(sourcePriority)+1
	for _, m := range matches {
		src := normalizeSource(m[1])
		rank, ok := sourcePriority[strings.ToUpper(src)]
		if !ok {
			rank = len(sourcePriority)
		}
		if rank < bestRank {
			best, bestRank = src, rank
		}
	}
	return best
}

func normalizeSource(tok string) string {
	switch strings.ToUpper(strings.ReplaceAll(tok, "-", "")) {
	case "BD", "BLURAY":
		return "BD"
	case "WEBDL", "WEB":
		return "WEB"
	case "WEBRIP":
		return "WEBRIP"
	}
	return tok
}

// IsMetadata reports whether a token describes quality, source, codec or a
// CRC checksum rather than a release group. Every word of the token must be
// a keyword on its own, so "[HEVC 10bit]" is metadata and "[CR-Subs]" is not.
func IsMetadata(token string) bool {
	t := strings.TrimSpace(strings.ReplaceAll(token, "_", " "))
	if t == "" {
		return true
	}
	if crcRe.MatchString(t) {
		return true
	}
	t = hyphenatedTagRe.ReplaceAllStringFunc(t, func(m string) string {
		return strings.ReplaceAll(m, "-", "")
	})
	words := strings.FieldsFunc(t, func(r rune) bool { return r == ' ' || r == '-' })
	if len(words) == 0 {
		return true
	}
	for _, w := range words {
		if !isMetadataWord(w) {
			return false
		}
	}
	return true
}

func isMetadataWord(w string) bool {
	for _, re := range []*regexp.Regexp{resolutionRe, sourceRe, codecRe} {
		if loc := re.FindStringIndex(w); loc != nil && loc[0] == 0 && loc[1] == len(w) {
			return true
		}
	}
	return false
}

// ExtractGroup picks the uploader tag out of the text that follows the
// episode token: the last non-metadata bracket token after the final dash,
// or the bare stem after it when there are no brackets.
func ExtractGroup(rest string) string {
	s := hyphenatedTagRe.ReplaceAllStringFunc(rest, func(m string) string {
		return strings.ReplaceAll(m, "-", "")
	})
	if i := strings.LastIndex(s, "-"); i >= 0 {
		s = s[i+1:]
	} else if !strings.ContainsAny(s, "[(") {
		return ""
	}
	s = StripMediaExt(strings.TrimSpace(s))

	if tokens := bracketTokenRe.FindAllStringSubmatch(s, -1); len(tokens) > 0 {
		for i := len(tokens) - 1; i >= 0; i-- {
			tok := strings.TrimSpace(tokens[i][1])
			if !IsMetadata(tok) {
				return tok
			}
		}
		return ""
	}
	if s == "" || strings.ContainsAny(s, " ._[]()") || IsMetadata(s) {
		return ""
	}
	return s
}
