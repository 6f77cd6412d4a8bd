package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizePathSegment replaces filesystem-unsafe characters in a path segment.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. Returns "Unknown" for empty input so library paths
// never collapse a directory level.
func SanitizePathSegment(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Unknown"
	}
	out := strings.TrimSpace(fileNameReplacer.Replace(name))
	if out == "" {
		return "Unknown"
	}
	return out
}
