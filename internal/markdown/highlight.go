package markdown

import (
	"bytes"
	"html"
	"io"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// highlighter renders fenced code blocks with chroma, emitting CSS classes
// rather than inline styles so the sanitizer can keep the markup.
type highlighter struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func newHighlighter(styleName string) *highlighter {
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	return &highlighter{
		style:     style,
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
	}
}

func (h *highlighter) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, h.renderFenced)
}

func (h *highlighter) renderFenced(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	lang := string(n.Language(source))

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	var out bytes.Buffer
	if err := h.highlight(&out, lang, code.String()); err != nil {
		out.Reset()
		writePlainCode(&out, lang, code.String())
	}
	_, _ = w.Write(out.Bytes())
	return ast.WalkSkipChildren, nil
}

func (h *highlighter) highlight(w io.Writer, lang, code string) error {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return err
	}
	return h.formatter.Format(w, h.style, it)
}

// WriteCSS writes the stylesheet matching the highlighter's classes.
func (h *highlighter) WriteCSS(w io.Writer) error {
	return h.formatter.WriteCSS(w, h.style)
}

func writePlainCode(w io.Writer, lang, code string) {
	class := ""
	if lang != "" {
		class = ` class="language-` + html.EscapeString(lang) + `"`
	}
	_, _ = io.WriteString(w, "<pre><code"+class+">"+html.EscapeString(code)+"</code></pre>\n")
}
