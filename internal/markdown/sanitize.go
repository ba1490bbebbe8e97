package markdown

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var classRe = regexp.MustCompile(`^[\w\s-]+$`)

// newPolicy builds the trusted-HTML boundary every rendered fragment passes
// through: user-generated-content rules plus the classes and data attributes
// the editor markup relies on.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(classRe).OnElements("span", "div", "pre", "code")
	p.AllowAttrs("data-note-title").OnElements("span")
	p.AllowAttrs("data-line-index").Matching(regexp.MustCompile(`^\d+$`)).OnElements("span")
	return p
}
