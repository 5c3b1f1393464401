package features

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	numberedRe     = regexp.MustCompile(`^\d+\.`)
	hierarchicalRe = regexp.MustCompile(`^\d+\.\d+`)
	threeLevelRe   = regexp.MustCompile(`^\d+\.\d+\.\d+`)
)

// HasNumberPrefix reports a leading single-level numeric prefix such as "1.".
func HasNumberPrefix(text string) bool {
	return numberedRe.MatchString(strings.TrimSpace(text))
}

// HasTwoLevelPrefix reports a leading "1.1" style prefix.
func HasTwoLevelPrefix(text string) bool {
	return hierarchicalRe.MatchString(strings.TrimSpace(text))
}

// HasThreeLevelPrefix reports a leading "1.1.1" style prefix.
func HasThreeLevelPrefix(text string) bool {
	return threeLevelRe.MatchString(strings.TrimSpace(text))
}

// EndsWithColon reports whether the stripped text ends with ':'.
func EndsWithColon(text string) bool {
	return strings.HasSuffix(strings.TrimSpace(text), ":")
}

// IsUpper reports whether text has at least one cased rune and no lower-case ones.
func IsUpper(text string) bool {
	cased := false
	for _, r := range text {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

// IsTitle reports whether every word starts with an upper-case rune followed only
// by lower-case runes. A word is a run of cased runes; uncased runes separate words.
func IsTitle(text string) bool {
	cased := false
	prevCased := false
	for _, r := range text {
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			if prevCased {
				return false
			}
			prevCased = true
			cased = true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			prevCased = true
			cased = true
		default:
			prevCased = false
		}
	}
	return cased
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
