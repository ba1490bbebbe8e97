package editor

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/starford/neuralnotes/internal/models"
)

// NoLine marks an unset line index in FocusState.
const NoLine = -1

// FocusState tracks which line accepts raw input (Editing) and which line
// holds the caret (Focused). They usually agree but may diverge while focus
// moves between lines.
type FocusState struct {
	Editing int
	Focused int
}

// MarshalJSON encodes unset indices as null.
func (f FocusState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Editing *int `json:"editing"`
		Focused *int `json:"focused"`
	}{optionalLine(f.Editing), optionalLine(f.Focused)})
}

func optionalLine(i int) *int {
	if i == NoLine {
		return nil
	}
	return &i
}

// NoFocus returns a state with neither index set.
func NoFocus() FocusState {
	return FocusState{Editing: NoLine, Focused: NoLine}
}

// Live reports whether line i is being edited or focused.
func (f FocusState) Live(i int) bool {
	return i == f.Editing || i == f.Focused
}

// LiveIn reports whether any line of r is live.
func (f FocusState) LiveIn(r models.CodeBlockRange) bool {
	return (f.Editing != NoLine && r.Contains(f.Editing)) ||
		(f.Focused != NoLine && r.Contains(f.Focused))
}

// Decider answers per-line render questions for one snapshot of a document.
type Decider struct {
	Lines  []string
	Ranges []models.CodeBlockRange
	Focus  FocusState
}

// ShouldRenderAsMarkup reports whether line i is displayed as rendered markup
// rather than raw source.
func (d Decider) ShouldRenderAsMarkup(i int) bool {
	if i < 0 || i >= len(d.Lines) {
		return false
	}
	if d.Focus.Live(i) {
		return false
	}
	line := d.Lines[i]
	if strings.TrimSpace(line) == "" {
		return false
	}
	if r, ok := rangeAt(d.Ranges, i); ok {
		if d.Focus.LiveIn(r) {
			return false
		}
		return i == r.Start
	}
	return HasMarkdownSyntax(line)
}

// Hidden reports whether line i is folded into its code block's opening line.
func (d Decider) Hidden(i int) bool {
	r, ok := rangeAt(d.Ranges, i)
	if !ok || d.Focus.LiveIn(r) {
		return false
	}
	return i != r.Start
}

// ItemType distinguishes individual lines from collapsed code blocks.
type ItemType string

const (
	ItemLine      ItemType = "line"
	ItemCodeBlock ItemType = "codeblock"
)

// Item is one visible unit of the editor.
type Item struct {
	ID       string   `json:"id"`
	Type     ItemType `json:"type"`
	Index    int      `json:"index"`
	End      int      `json:"end,omitempty"`
	Language string   `json:"language,omitempty"`
	Text     string   `json:"text"`
	Render   bool     `json:"render"`
}

// VisibleItems walks the document once. A code block renders as one
// collapsed item unless one of its lines is live, in which case every member
// line is emitted raw.
func (d Decider) VisibleItems() []Item {
	items := make([]Item, 0, len(d.Lines))
	next := 0
	for i := 0; i < len(d.Lines); i++ {
		var (
			r  models.CodeBlockRange
			ok bool
		)
		for next < len(d.Ranges) && d.Ranges[next].Start < i {
			next++
		}
		if next < len(d.Ranges) && d.Ranges[next].Start == i {
			r, ok = d.Ranges[next], true
		}
		if !ok {
			items = append(items, Item{
				ID:     lineID(i),
				Type:   ItemLine,
				Index:  i,
				Text:   d.Lines[i],
				Render: d.ShouldRenderAsMarkup(i),
			})
			continue
		}

		if d.Focus.LiveIn(r) {
			for j := r.Start; j <= r.End; j++ {
				items = append(items, Item{
					ID:    lineID(j),
					Type:  ItemLine,
					Index: j,
					Text:  d.Lines[j],
				})
			}
		} else {
			items = append(items, Item{
				ID:       codeBlockID(r),
				Type:     ItemCodeBlock,
				Index:    r.Start,
				End:      r.End,
				Language: r.Language,
				Text:     strings.Join(d.Lines[r.Start:r.End+1], "\n"),
				Render:   true,
			})
		}
		i = r.End
	}
	return items
}

func lineID(i int) string {
	return "line-" + strconv.Itoa(i)
}

func codeBlockID(r models.CodeBlockRange) string {
	return "codeblock-" + strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End)
}
