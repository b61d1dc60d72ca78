package layout

import (
	"regexp"
	"unicode/utf8"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripANSI removes ANSI escape codes from a string.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// Truncate shortens text to maxWidth runes, ending in the ellipsis when cut.
func Truncate(text string, maxWidth int, cfg TextConfig) string {
	if maxWidth <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxWidth {
		return text
	}

	ellipsis := []rune(cfg.Ellipsis)
	if maxWidth <= len(ellipsis) {
		return string(ellipsis[:maxWidth])
	}
	runes := []rune(text)
	return string(runes[:maxWidth-len(ellipsis)]) + cfg.Ellipsis
}

// TruncateWithPrefix truncates text so that prefix+text fits maxWidth.
// The prefix is kept whole whenever it fits.
func TruncateWithPrefix(text string, maxWidth int, prefix string, cfg TextConfig) string {
	prefixLen := utf8.RuneCountInString(prefix)
	if prefixLen >= maxWidth {
		return Truncate(prefix+text, maxWidth, cfg)
	}
	return prefix + Truncate(text, maxWidth-prefixLen, cfg)
}
