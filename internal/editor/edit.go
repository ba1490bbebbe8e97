package editor

import (
	"regexp"
	"unicode/utf8"
)

// Caret is a position in a document. Offset counts characters, not bytes.
type Caret struct {
	Line   int `json:"line"`
	Offset int `json:"offset"`
}

// Clamp moves c inside lines. An empty document clamps to (0, 0).
func (c Caret) Clamp(lines []string) Caret {
	if len(lines) == 0 {
		return Caret{}
	}
	if c.Line < 0 {
		c.Line = 0
	}
	if c.Line >= len(lines) {
		c.Line = len(lines) - 1
	}
	c.Offset = clampOffset(lines[c.Line], c.Offset)
	return c
}

func clampOffset(line string, offset int) int {
	if offset < 0 {
		return 0
	}
	if n := utf8.RuneCountInString(line); offset > n {
		return n
	}
	return offset
}

// splitAt cuts line at a character offset.
func splitAt(line string, offset int) (string, string) {
	offset = clampOffset(line, offset)
	r := []rune(line)
	return string(r[:offset]), string(r[offset:])
}

// SplitLine breaks line i at offset; the tail becomes line i+1 and the caret
// moves to its start.
func SplitLine(lines []string, i, offset int) ([]string, Caret, bool) {
	if i < 0 || i >= len(lines) {
		return lines, Caret{}, false
	}
	head, tail := splitAt(lines[i], offset)
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:i]...)
	out = append(out, head, tail)
	out = append(out, lines[i+1:]...)
	return out, Caret{Line: i + 1}, true
}

// MergeLine appends line i to line i-1 and removes it. The caret lands on the
// merge point. Merging the first line is a no-op.
func MergeLine(lines []string, i int) ([]string, Caret, bool) {
	if i <= 0 || i >= len(lines) {
		return lines, Caret{}, false
	}
	prev := lines[i-1]
	out := make([]string, 0, len(lines)-1)
	out = append(out, lines[:i-1]...)
	out = append(out, prev+lines[i])
	out = append(out, lines[i+1:]...)
	return out, Caret{Line: i - 1, Offset: utf8.RuneCountInString(prev)}, true
}

// InsertLine inserts text before index i; i is clamped to [0, len(lines)].
func InsertLine(lines []string, i int, text string) []string {
	if i < 0 {
		i = 0
	}
	if i > len(lines) {
		i = len(lines)
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:i]...)
	out = append(out, text)
	out = append(out, lines[i:]...)
	return out
}

// DeleteLine removes line i. A document never drops below one line.
func DeleteLine(lines []string, i int) ([]string, bool) {
	if len(lines) <= 1 || i < 0 || i >= len(lines) {
		return lines, false
	}
	out := make([]string, 0, len(lines)-1)
	out = append(out, lines[:i]...)
	out = append(out, lines[i+1:]...)
	return out, true
}

var checkboxMarkRe = regexp.MustCompile(`^(\s*-?\s*)\[([xX\s])\]`)

// ToggleCheckbox flips the marker of a checkbox line between "x" and " ".
func ToggleCheckbox(line string) (string, bool) {
	info := Classify(line)
	if info.Kind != KindCheckbox {
		return line, false
	}
	m := checkboxMarkRe.FindStringSubmatchIndex(line)
	if m == nil {
		return line, false
	}
	mark := "x"
	if info.Checked {
		mark = " "
	}
	prefix := line[m[2]:m[3]]
	return prefix + "[" + mark + "]" + line[m[1]:], true
}

// Direction is a caret movement key.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Move computes where the caret goes when dir is pressed at c. ok is false
// when the key should be left to the host (no line change).
func Move(lines []string, c Caret, dir Direction) (Caret, bool) {
	if c.Line < 0 || c.Line >= len(lines) {
		return c, false
	}
	last := len(lines) - 1
	switch dir {
	case Up:
		if c.Line == 0 {
			return c, false
		}
		return Caret{Line: c.Line - 1, Offset: clampOffset(lines[c.Line-1], c.Offset)}, true
	case Down:
		if c.Line >= last {
			return c, false
		}
		return Caret{Line: c.Line + 1, Offset: clampOffset(lines[c.Line+1], c.Offset)}, true
	case Left:
		if c.Offset > 0 || c.Line == 0 {
			return c, false
		}
		return Caret{Line: c.Line - 1, Offset: utf8.RuneCountInString(lines[c.Line-1])}, true
	case Right:
		if c.Offset < utf8.RuneCountInString(lines[c.Line]) || c.Line >= last {
			return c, false
		}
		return Caret{Line: c.Line + 1}, true
	}
	return c, false
}
