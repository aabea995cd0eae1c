// Package diff computes line-level diffs between two versions of a function
// body plus flat change statistics.
package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Stats lists the raw added and deleted lines of a diff. Hunk headers and
// file markers are excluded from both lists.
type Stats struct {
	AddedLines   []string `json:"added_lines"`
	DeletedLines []string `json:"deleted_lines"`
}

// Changed reports whether the diff touched any line at all.
func (s Stats) Changed() bool {
	return len(s.AddedLines) > 0 || len(s.DeletedLines) > 0
}

// Total returns the combined count of added and deleted lines.
func (s Stats) Total() int {
	return len(s.AddedLines) + len(s.DeletedLines)
}

// Lines produces a unified diff between two function bodies, along with the
// added/deleted line lists. Diffing a body against itself yields an empty
// diff and empty lists.
func Lines(before, after string) (string, Stats, error) {
	ud := difflib.UnifiedDiff{
		A:       difflib.SplitLines(before),
		B:       difflib.SplitLines(after),
		Context: 3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", Stats{}, fmt.Errorf("unified diff: %w", err)
	}

	stats := Stats{AddedLines: []string{}, DeletedLines: []string{}}
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "@@"):
			// diff metadata, not content
		case strings.HasPrefix(line, "+"):
			stats.AddedLines = append(stats.AddedLines, line[1:])
		case strings.HasPrefix(line, "-"):
			stats.DeletedLines = append(stats.DeletedLines, line[1:])
		}
	}
	return text, stats, nil
}
