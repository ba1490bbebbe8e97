// Package editor implements the line-based editing engine: line
// classification, code-block scanning, per-line render decisions, structural
// edits and the caret protocol shared with a host UI.
package editor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// LineKind is the structural kind of a single line.
type LineKind int

const (
	KindText LineKind = iota
	KindHeader
	KindCheckbox
	KindUnorderedList
	KindOrderedList
	KindBlockquote
)

func (k LineKind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindCheckbox:
		return "checkbox"
	case KindUnorderedList:
		return "unordered-list"
	case KindOrderedList:
		return "ordered-list"
	case KindBlockquote:
		return "blockquote"
	default:
		return "text"
	}
}

// LineInfo is the classification of a line.
type LineInfo struct {
	Kind        LineKind `json:"-"`
	Level       int      `json:"level,omitempty"`
	Indent      int      `json:"indent"`
	ListOrdinal string   `json:"list_ordinal,omitempty"`
	Checked     bool     `json:"checked,omitempty"`
}

// Type returns the kind name; headers carry their level ("header-2").
func (li LineInfo) Type() string {
	if li.Kind == KindHeader {
		return fmt.Sprintf("header-%d", li.Level)
	}
	return li.Kind.String()
}

var (
	checkboxRe  = regexp.MustCompile(`^-?\s*\[([xX\s])\]\s+(.*)$`)
	unorderedRe = regexp.MustCompile(`^[-*+]\s+`)
	orderedRe   = regexp.MustCompile(`^(\d+)\.\s`)
	headerRe    = regexp.MustCompile(`^(#{1,6})\s`)
	quoteRe     = regexp.MustCompile(`^>\s`)
)

// Classify returns the kind and metadata of line. Checkboxes win over
// unordered lists, which win over ordered lists, headers and blockquotes.
func Classify(line string) LineInfo {
	trimmed := strings.TrimSpace(line)
	info := LineInfo{Indent: leadingWhitespace(line) / 2}

	if m := checkboxRe.FindStringSubmatch(trimmed); m != nil {
		info.Kind = KindCheckbox
		info.Checked = strings.EqualFold(m[1], "x")
		return info
	}
	if unorderedRe.MatchString(trimmed) {
		info.Kind = KindUnorderedList
		return info
	}
	if m := orderedRe.FindStringSubmatch(trimmed); m != nil {
		info.Kind = KindOrderedList
		info.ListOrdinal = m[1]
		return info
	}
	if m := headerRe.FindStringSubmatch(trimmed); m != nil {
		info.Kind = KindHeader
		info.Level = len(m[1])
		return info
	}
	if quoteRe.MatchString(trimmed) {
		info.Kind = KindBlockquote
		return info
	}
	return info
}

// CheckboxText returns the body of a checkbox line and whether line is one.
func CheckboxText(line string) (string, bool) {
	m := checkboxRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", false
	}
	return m[2], true
}

// OrdinalValue parses ListOrdinal, returning 0 when absent.
func (li LineInfo) OrdinalValue() int {
	n, _ := strconv.Atoi(li.ListOrdinal)
	return n
}

func leadingWhitespace(line string) int {
	n := 0
	for _, r := range line {
		if !unicode.IsSpace(r) {
			break
		}
		n++
	}
	return n
}

var markdownPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^#{1,6}\s+`),
	regexp.MustCompile(`\*\*.*\*\*`),
	regexp.MustCompile(`\*.*\*`),
	regexp.MustCompile("`.*`"),
	regexp.MustCompile(`^\s*[-*+]\s+`),
	regexp.MustCompile(`^\s*\d+\.\s+`),
	regexp.MustCompile(`^\s*>\s+`),
	regexp.MustCompile(`\[.*\]\(.*\)`),
	regexp.MustCompile("^```"),
	regexp.MustCompile(`\[\[.*\]\]`),
	regexp.MustCompile(`^\s*-?\s*\[[xX\s]\]\s+`),
}

// HasMarkdownSyntax reports whether line contains any markdown construct
// worth rendering.
func HasMarkdownSyntax(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	for _, re := range markdownPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
