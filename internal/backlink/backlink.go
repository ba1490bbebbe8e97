// Package backlink finds [[Title]] references in a line and resolves them
// against the titles of every note.
package backlink

import (
	"regexp"
	"strings"
)

var (
	tokenRe   = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	partialRe = regexp.MustCompile(`\[\[([^\]]*)$`)
)

// State tells whether a backlink target exists.
type State string

const (
	Existing State = "existing"
	Missing  State = "missing"
)

// Class returns the CSS class used for the state.
func (s State) Class() string {
	return "backlink-" + string(s)
}

// Target is a note a backlink may point at.
type Target struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Token is one [[Title]] occurrence. Start and End are byte offsets of the
// full token inside the line.
type Token struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Title    string `json:"title"`
	State    State  `json:"state"`
	TargetID string `json:"target_id,omitempty"`
}

// Resolver matches titles case-insensitively. Build a fresh one for each
// render pass; the note set changes between renders.
type Resolver struct {
	byTitle map[string]Target
}

// NewResolver indexes targets. When titles collide the first one wins.
func NewResolver(targets []Target) *Resolver {
	r := &Resolver{byTitle: make(map[string]Target, len(targets))}
	for _, t := range targets {
		key := strings.ToLower(t.Title)
		if _, dup := r.byTitle[key]; dup {
			continue
		}
		r.byTitle[key] = t
	}
	return r
}

// Lookup finds the note titled title, ignoring case.
func (r *Resolver) Lookup(title string) (Target, bool) {
	if r == nil {
		return Target{}, false
	}
	t, ok := r.byTitle[strings.ToLower(strings.TrimSpace(title))]
	return t, ok
}

// Tokens returns every backlink in line, resolved. Blank titles are not
// backlinks.
func (r *Resolver) Tokens(line string) []Token {
	matches := tokenRe.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return nil
	}
	var out []Token
	for _, m := range matches {
		title := strings.TrimSpace(line[m[2]:m[3]])
		if title == "" {
			continue
		}
		tok := Token{Start: m[0], End: m[1], Title: title, State: Missing}
		if t, ok := r.Lookup(title); ok {
			tok.State = Existing
			tok.TargetID = t.ID
		}
		out = append(out, tok)
	}
	return out
}

// Titles returns the trimmed, deduplicated titles referenced in text.
func Titles(text string) []string {
	matches := tokenRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		title := strings.TrimSpace(m[1])
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, title)
	}
	return out
}

// PartialQuery returns the text typed after an unterminated trailing "[[".
func PartialQuery(line string) (string, bool) {
	m := partialRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Suggest returns up to limit targets whose titles contain the partial
// query, skipping excludeID. ok is false when line has no open "[[".
func Suggest(line string, targets []Target, excludeID string, limit int) (query string, out []Target, ok bool) {
	query, ok = PartialQuery(line)
	if !ok {
		return "", nil, false
	}
	q := strings.ToLower(query)
	for _, t := range targets {
		if len(out) >= limit {
			break
		}
		if t.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(t.Title), q) {
			out = append(out, t)
		}
	}
	return query, out, true
}

// Complete replaces the trailing partial token of line with [[title]].
// The line is returned unchanged when it has no open "[[".
func Complete(line, title string) string {
	loc := partialRe.FindStringIndex(line)
	if loc == nil {
		return line
	}
	return line[:loc[0]] + "[[" + title + "]]"
}
