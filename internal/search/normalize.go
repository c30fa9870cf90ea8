package search

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// titleTerminators end the game name in catalog titles. Applied in order,
// each on the result of the previous cut.
var titleTerminators = []string{"Free Download", "Build"}

// versionPattern matches dotted version numbers such as 1.0.3 or 10.2.
// Word boundaries are checked by versionStart since RE2 \b is ASCII only.
var versionPattern = regexp.MustCompile(`\p{Nd}+(?:\.\p{Nd}+)+`)

// Normalize reduces a catalog title to the bare game name used for metadata
// lookups. It never returns an empty string for a non-blank title.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	title := trimmed
	for _, keyword := range titleTerminators {
		if before, _, found := strings.Cut(title, keyword); found {
			title = strings.TrimSpace(before)
		}
	}
	if start := versionStart(title); start >= 0 {
		title = strings.TrimSpace(title[:start])
	}
	if title == "" {
		return trimmed
	}
	return title
}

// versionStart returns the byte offset of the first version number that sits
// between Unicode word boundaries, or -1.
func versionStart(title string) int {
	offset := 0
	for offset < len(title) {
		loc := versionPattern.FindStringIndex(title[offset:])
		if loc == nil {
			return -1
		}
		start, end := offset+loc[0], offset+loc[1]
		if !wordBefore(title, start) {
			// Greedy match stops at the end of a digit run. If a word rune
			// follows, dropping the last run leaves a match that ends on a dot.
			if !wordAfter(title, end) || strings.Count(title[start:end], ".") >= 2 {
				return start
			}
		}
		_, size := utf8.DecodeRuneInString(title[start:])
		offset = start + size
	}
	return -1
}

func wordBefore(s string, i int) bool {
	if i <= 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isWordRune(r)
}

func wordAfter(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
