package editor

import (
	"strings"

	"github.com/starford/neuralnotes/internal/models"
)

const fence = "```"

// ScanCodeBlocks finds fenced code blocks in one pass. A fence that is never
// closed extends to the last line.
func ScanCodeBlocks(lines []string) []models.CodeBlockRange {
	var (
		ranges []models.CodeBlockRange
		open   bool
		cur    models.CodeBlockRange
	)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, fence) {
			continue
		}
		if !open {
			open = true
			cur = models.CodeBlockRange{
				Start:    i,
				Language: strings.TrimSpace(trimmed[len(fence):]),
			}
			continue
		}
		open = false
		cur.End = i
		ranges = append(ranges, cur)
	}
	if open {
		cur.End = len(lines) - 1
		ranges = append(ranges, cur)
	}
	return ranges
}

// rangeAt returns the range containing line i.
func rangeAt(ranges []models.CodeBlockRange, i int) (models.CodeBlockRange, bool) {
	for _, r := range ranges {
		if r.Contains(i) {
			return r, true
		}
		if r.Start > i {
			break
		}
	}
	return models.CodeBlockRange{}, false
}
