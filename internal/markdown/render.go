// Package markdown turns editor lines into sanitized HTML fragments.
//
// Each line renders to one of a closed set of variants. Generic lines go
// through goldmark (GitHub-flavored, hard line breaks) with an inline
// extension for [[Title]] backlinks; fenced code blocks render as a single
// unit highlighted by chroma. Every fragment passes through a bluemonday
// policy before it leaves the package.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"

	"github.com/starford/neuralnotes/internal/backlink"
	"github.com/starford/neuralnotes/internal/editor"
	"github.com/starford/neuralnotes/internal/models"
)

// Variant names the kind of markup produced for a line.
type Variant string

const (
	VariantEmpty     Variant = "empty"
	VariantCheckbox  Variant = "checkbox"
	VariantCodeBlock Variant = "codeblock"
	VariantMarkdown  Variant = "markdown"
	VariantPlain     Variant = "plain"
)

// Markup is the rendered form of one line or one collapsed code block.
// Folded is set for code-block member lines that render nothing because the
// opening line stands for the whole block.
type Markup struct {
	Variant Variant `json:"variant"`
	HTML    string  `json:"html"`
	Line    int     `json:"line"`
	End     int     `json:"end,omitempty"`
	Folded  bool    `json:"folded,omitempty"`
}

const emptyLineHTML = `<div class="empty-line">&nbsp;</div>`

// Converter is the markdown-to-HTML engine. goldmark.Markdown satisfies it.
type Converter interface {
	Convert(source []byte, w io.Writer, opts ...parser.ParseOption) error
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithConverter replaces the goldmark converter.
func WithConverter(c Converter) Option {
	return func(r *Renderer) { r.conv = c }
}

// WithHighlightStyle selects the chroma style used for code blocks.
func WithHighlightStyle(name string) Option {
	return func(r *Renderer) { r.styleName = name }
}

// Renderer renders lines of a note. It is safe for concurrent use.
type Renderer struct {
	conv      Converter
	hl        *highlighter
	policy    *bluemonday.Policy
	styleName string
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{styleName: "github"}
	for _, opt := range opts {
		opt(r)
	}
	r.hl = newHighlighter(r.styleName)
	r.policy = newPolicy()
	if r.conv == nil {
		r.conv = goldmark.New(
			goldmark.WithExtensions(extension.GFM, backlinkExtension{}),
			goldmark.WithRendererOptions(
				gmhtml.WithHardWraps(),
				renderer.WithNodeRenderers(util.Prioritized(r.hl, 200)),
			),
		)
	}
	return r
}

// WriteCSS writes the code highlighting stylesheet.
func (r *Renderer) WriteCSS(w io.Writer) error {
	return r.hl.WriteCSS(w)
}

// Doc is the input of a render pass: the note's lines, its code-block ranges
// and a resolver built from the current note set.
type Doc struct {
	Lines    []string
	Ranges   []models.CodeBlockRange
	Resolver *backlink.Resolver
}

// Line renders line i of doc.
func (r *Renderer) Line(doc Doc, i int) Markup {
	if i < 0 || i >= len(doc.Lines) {
		return Markup{Variant: VariantEmpty, HTML: emptyLineHTML, Line: i}
	}
	line := doc.Lines[i]
	if strings.TrimSpace(line) == "" {
		return Markup{Variant: VariantEmpty, HTML: emptyLineHTML, Line: i}
	}
	for _, cb := range doc.Ranges {
		if !cb.Contains(i) {
			continue
		}
		if i != cb.Start {
			return Markup{Variant: VariantCodeBlock, Line: i, Folded: true}
		}
		return r.CodeBlock(doc.Lines, cb)
	}
	if info := editor.Classify(line); info.Kind == editor.KindCheckbox {
		return r.checkbox(line, i, info.Checked, doc.Resolver)
	}
	return r.generic(line, i, doc.Resolver)
}

// CodeBlock renders a whole fenced block, fence lines included, as one unit.
func (r *Renderer) CodeBlock(lines []string, cb models.CodeBlockRange) Markup {
	end := cb.End
	if end >= len(lines) {
		end = len(lines) - 1
	}
	m := Markup{Variant: VariantCodeBlock, Line: cb.Start, End: end}
	src := strings.Join(lines[cb.Start:end+1], "\n")

	var buf bytes.Buffer
	if err := r.conv.Convert([]byte(src), &buf); err != nil {
		buf.Reset()
		writePlainCode(&buf, cb.Language, strings.Join(lines[cb.Start+1:codeEnd(lines, cb.Start, end)], "\n"))
	}
	m.HTML = r.policy.Sanitize(buf.String())
	return m
}

// codeEnd is the exclusive end of a block's content lines: the closing fence
// is dropped when present.
func codeEnd(lines []string, start, end int) int {
	if end > start && strings.HasPrefix(strings.TrimSpace(lines[end]), "```") {
		return end
	}
	return end + 1
}

func (r *Renderer) checkbox(line string, i int, checked bool, res *backlink.Resolver) Markup {
	text, _ := editor.CheckboxText(line)
	icon, class := "☐", "checkbox-text"
	if checked {
		icon, class = "☑", "checkbox-text completed"
	}
	out := `<div class="checkbox-line">` +
		`<span class="checkbox-icon" data-line-index="` + strconv.Itoa(i) + `">` + icon + `</span>` +
		`<span class="` + class + `">` + backlinkHTML(text, res) + `</span>` +
		`</div>`
	return Markup{Variant: VariantCheckbox, HTML: r.policy.Sanitize(out), Line: i}
}

func (r *Renderer) generic(line string, i int, res *backlink.Resolver) (m Markup) {
	defer func() {
		if rec := recover(); rec != nil {
			m = plain(line, i)
		}
	}()
	ctx := parser.NewContext()
	ctx.Set(resolverKey, res)

	var buf bytes.Buffer
	if err := r.conv.Convert([]byte(line), &buf, parser.WithContext(ctx)); err != nil {
		return plain(line, i)
	}
	return Markup{
		Variant: VariantMarkdown,
		HTML:    r.policy.Sanitize(stripParagraph(buf.String())),
		Line:    i,
	}
}

func plain(line string, i int) Markup {
	return Markup{Variant: VariantPlain, HTML: html.EscapeString(line), Line: i}
}

// stripParagraph unwraps output consisting of a single <p> element; each
// line renders inline rather than as a block.
func stripParagraph(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "<p>") || !strings.HasSuffix(t, "</p>") {
		return s
	}
	inner := t[len("<p>") : len(t)-len("</p>")]
	if strings.Contains(inner, "<p>") {
		return s
	}
	return inner
}

// View is an editor item together with its markup. Markup is nil for lines
// shown as raw source.
type View struct {
	editor.Item
	Markup *Markup `json:"markup,omitempty"`
}

// Items renders the visible items of a decider against the current note set.
func (r *Renderer) Items(d editor.Decider, res *backlink.Resolver) []View {
	doc := Doc{Lines: d.Lines, Ranges: d.Ranges, Resolver: res}
	items := d.VisibleItems()
	out := make([]View, len(items))
	for k, it := range items {
		out[k] = View{Item: it}
		switch {
		case it.Type == editor.ItemCodeBlock:
			m := r.CodeBlock(d.Lines, models.CodeBlockRange{Start: it.Index, End: it.End, Language: it.Language})
			out[k].Markup = &m
		case it.Render:
			m := r.Line(doc, it.Index)
			out[k].Markup = &m
		}
	}
	return out
}

// Note renders a whole note in read-only mode (no live line).
func (r *Renderer) Note(n *models.Note, res *backlink.Resolver) []View {
	d := editor.Decider{
		Lines:  n.Lines,
		Ranges: editor.ScanCodeBlocks(n.Lines),
		Focus:  editor.NoFocus(),
	}
	return r.Items(d, res)
}

// HTML concatenates the markup of views, substituting escaped source for
// lines that are not rendered.
func HTML(views []View) string {
	var sb strings.Builder
	for _, v := range views {
		if v.Markup != nil {
			sb.WriteString(v.Markup.HTML)
		} else {
			sb.WriteString(fmt.Sprintf(`<div class="raw-line">%s</div>`, html.EscapeString(v.Text)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
