package markdown

import (
	"bytes"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/starford/neuralnotes/internal/backlink"
)

// resolverKey carries the per-render backlink resolver through goldmark's
// parser context.
var resolverKey = parser.NewContextKey()

var kindBacklink = ast.NewNodeKind("Backlink")

type backlinkNode struct {
	ast.BaseInline
	Title string
	State backlink.State
}

func (n *backlinkNode) Kind() ast.NodeKind { return kindBacklink }

func (n *backlinkNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Title": n.Title,
		"State": string(n.State),
	}, nil)
}

type backlinkParser struct{}

func (backlinkParser) Trigger() []byte {
	return []byte{'['}
}

func (backlinkParser) Parse(_ ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) < 5 || line[0] != '[' || line[1] != '[' {
		return nil
	}
	end := bytes.Index(line[2:], []byte("]]"))
	if end <= 0 {
		return nil
	}
	inner := line[2 : 2+end]
	if bytes.IndexByte(inner, ']') >= 0 {
		return nil
	}
	title := strings.TrimSpace(string(inner))
	if title == "" {
		return nil
	}
	block.Advance(2 + end + 2)

	state := backlink.Missing
	if r, ok := pc.Get(resolverKey).(*backlink.Resolver); ok {
		if _, found := r.Lookup(title); found {
			state = backlink.Existing
		}
	}
	return &backlinkNode{Title: title, State: state}
}

type backlinkRenderer struct{}

func (r backlinkRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(kindBacklink, r.render)
}

func (backlinkRenderer) render(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*backlinkNode)
	_, _ = w.WriteString(backlinkSpan(n.Title, n.State))
	return ast.WalkSkipChildren, nil
}

type backlinkExtension struct{}

// Extend registers the [[Title]] inline parser ahead of goldmark's link parser.
func (backlinkExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(backlinkParser{}, 199),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(backlinkRenderer{}, 199),
	))
}

func backlinkSpan(title string, state backlink.State) string {
	t := html.EscapeString(title)
	return `<span class="backlink ` + state.Class() + `" data-note-title="` + t + `">` + t + `</span>`
}

// backlinkHTML escapes text and turns each [[Title]] into a backlink span.
func backlinkHTML(text string, r *backlink.Resolver) string {
	tokens := r.Tokens(text)
	if len(tokens) == 0 {
		return html.EscapeString(text)
	}
	var sb strings.Builder
	last := 0
	for _, tok := range tokens {
		sb.WriteString(html.EscapeString(text[last:tok.Start]))
		sb.WriteString(backlinkSpan(tok.Title, tok.State))
		last = tok.End
	}
	sb.WriteString(html.EscapeString(text[last:]))
	return sb.String()
}
