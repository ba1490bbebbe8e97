// Package parser reads seed markdown files: YAML frontmatter, title, tags
// and the body split into editor lines.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/neuralnotes/internal/editor"
	"github.com/starford/neuralnotes/internal/models"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Result holds the output of parsing a markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Lines       []string
	Tags        []string
	Title       string
}

// Parse splits off frontmatter and derives title, tags and lines. A file
// without a title in frontmatter or an H1 gets an empty Title.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	body = strings.TrimRight(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	lines := models.SplitLines(body)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Lines:       lines,
		Tags:        extractTags(lines, fm),
		Title:       deriveTitle(fm, lines),
	}, nil
}

// splitFrontmatter separates YAML frontmatter between leading --- lines
// from the body. Without valid frontmatter the whole input is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data), nil
	}
	return fm, body, nil
}

// extractTags collects frontmatter tags and inline #tags outside fenced
// code, lowercased and deduplicated in order of appearance.
func extractTags(lines []string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}

	ranges := editor.ScanCodeBlocks(lines)
	for i, line := range lines {
		if inRanges(ranges, i) {
			continue
		}
		for _, m := range tagRe.FindAllStringSubmatch(line, -1) {
			add(m[1])
		}
	}
	return out
}

func inRanges(ranges []models.CodeBlockRange, i int) bool {
	for _, r := range ranges {
		if r.Contains(i) {
			return true
		}
	}
	return false
}

// deriveTitle returns the frontmatter title, else the first H1 outside
// fenced code.
func deriveTitle(fm map[string]any, lines []string) string {
	if s, ok := fm["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	ranges := editor.ScanCodeBlocks(lines)
	for i, line := range lines {
		if inRanges(ranges, i) {
			continue
		}
		info := editor.Classify(line)
		if info.Kind == editor.KindHeader && info.Level == 1 {
			return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#"))
		}
	}
	return ""
}
