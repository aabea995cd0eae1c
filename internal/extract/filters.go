package extract

import (
	"strings"

	"funcdiff/internal/diff"
)

// Advisory filters applied by the extraction pipeline. These bound output
// volume for the surrounding tool; the analysis core itself has no size
// limits.

func isTestFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "test") || strings.Contains(lower, "unittest")
}

func isLargeFunction(code string, maxLines int) bool {
	return len(strings.Split(code, "\n")) > maxLines
}

func isLargeChange(stats diff.Stats, maxChanged int) bool {
	return stats.Total() > maxChanged
}
