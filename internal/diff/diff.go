// Package diff renders line-level changes between two versions of an
// artifact. Commonality is judged with a membership set rather than a true
// longest-common-subsequence, so duplicate or reordered lines can misalign;
// the trade is O(n+m) time and stable, predictable output.
package diff

import "strings"

// Op classifies one line of diff output.
type Op string

const (
	Added     Op = "added"
	Removed   Op = "removed"
	Unchanged Op = "unchanged"
)

// Segment is one line of diff output, in order.
type Segment struct {
	Op   Op     `json:"type"`
	Text string `json:"content"`
}

// Lines compares two texts line by line and returns the ordered change
// segments transforming oldText into newText.
func Lines(oldText, newText string) []Segment {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	common := commonSet(oldLines, newLines)

	segments := make([]Segment, 0, len(oldLines)+len(newLines))
	i, j := 0, 0

	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i >= len(oldLines):
			segments = append(segments, Segment{Op: Added, Text: newLines[j]})
			j++
		case j >= len(newLines):
			segments = append(segments, Segment{Op: Removed, Text: oldLines[i]})
			i++
		case oldLines[i] == newLines[j]:
			segments = append(segments, Segment{Op: Unchanged, Text: oldLines[i]})
			i++
			j++
		case !common[oldLines[i]]:
			segments = append(segments, Segment{Op: Removed, Text: oldLines[i]})
			i++
		case !common[newLines[j]]:
			segments = append(segments, Segment{Op: Added, Text: newLines[j]})
			j++
		default:
			// Both lines exist elsewhere in the other text but differ here:
			// a paired replacement.
			segments = append(segments,
				Segment{Op: Removed, Text: oldLines[i]},
				Segment{Op: Added, Text: newLines[j]},
			)
			i++
			j++
		}
	}

	return segments
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func commonSet(oldLines, newLines []string) map[string]bool {
	oldSet := make(map[string]bool, len(oldLines))
	for _, line := range oldLines {
		oldSet[line] = true
	}

	common := make(map[string]bool)
	for _, line := range newLines {
		if oldSet[line] {
			common[line] = true
		}
	}

	return common
}
