package media

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// MatchWindow is the maximum created-time distance at which two same-named
// items on opposite stores are considered the same media.
const MatchWindow = 24 * time.Hour

var folder = cases.Fold()

// Photos appends "(1)"-style counters when a duplicate filename is uploaded;
// Drive marks copies with a " - Copy" suffix. Both are stripped before
// matching so the counterpart name still lines up.
var duplicateSuffix = regexp.MustCompile(`(?i)(\s*\(\d+\)|\s+-\s+copy)$`)

// NormalizeName case-folds a filename and removes store-specific duplicate
// suffixes from the stem. The extension is preserved.
func NormalizeName(name string) string {
	folded := folder.String(strings.TrimSpace(name))
	ext := ""
	if idx := strings.LastIndex(folded, "."); idx > 0 {
		ext = folded[idx:]
		folded = folded[:idx]
	}
	folded = duplicateSuffix.ReplaceAllString(folded, "")
	return folded + ext
}
