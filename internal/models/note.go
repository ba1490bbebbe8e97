// Package models defines the domain types for Neural Notes.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// PreviewLength is the number of characters kept in Note.Preview.
const PreviewLength = 50

// Note is a line-oriented markdown document. Lines is the source of truth;
// Content and Preview are derived from it by RecomputeDerived.
type Note struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Lines        []string  `json:"lines"`
	Content      string    `json:"content"`
	Preview      string    `json:"preview"`
	LastModified time.Time `json:"last_modified"`
	FolderID     string    `json:"folder_id,omitempty"`
	Tags         []string  `json:"tags"`
	Checksum     string    `json:"checksum"`
}

// NewNote returns a note with a single empty line.
func NewNote(id, title string, now time.Time) *Note {
	n := &Note{
		ID:    id,
		Title: title,
		Lines: []string{""},
		Tags:  []string{},
	}
	n.RecomputeDerived(now)
	return n
}

// RecomputeDerived refreshes Content, Preview, Checksum and LastModified.
// An empty Lines slice is restored to one empty line.
func (n *Note) RecomputeDerived(now time.Time) {
	if len(n.Lines) == 0 {
		n.Lines = []string{""}
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	n.Content = strings.Join(n.Lines, "\n")
	n.Preview = Preview(n.Lines, PreviewLength)
	n.LastModified = now
	n.Checksum = n.computeChecksum()
}

// Clone returns a deep copy.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	c.Lines = append([]string(nil), n.Lines...)
	c.Tags = append([]string{}, n.Tags...)
	return &c
}

func (n *Note) computeChecksum() string {
	h := sha256.New()
	h.Write([]byte(n.Title))
	h.Write([]byte{0})
	h.Write([]byte(n.Content))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(n.Tags, ",")))
	h.Write([]byte{0})
	h.Write([]byte(n.FolderID))
	return hex.EncodeToString(h.Sum(nil))
}

// Preview returns the first limit characters of the first non-blank line,
// followed by "..." when truncated.
func Preview(lines []string, limit int) string {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		r := []rune(line)
		if len(r) <= limit {
			return line
		}
		return string(r[:limit]) + "..."
	}
	return ""
}

// SplitLines splits content into lines, normalising CRLF.
func SplitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(content, "\n")
}

// Folder groups notes in the sidebar.
type Folder struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	IsExpanded bool      `json:"is_expanded"`
	CreatedAt  time.Time `json:"created_at"`
}

// Clone returns a copy.
func (f *Folder) Clone() *Folder {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// CodeBlockRange is an inclusive span of lines belonging to one fenced code block.
type CodeBlockRange struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Language string `json:"language,omitempty"`
}

// Contains reports whether line i falls inside the range.
func (r CodeBlockRange) Contains(i int) bool {
	return i >= r.Start && i <= r.End
}

// Link represents a directed [[Title]] reference between two notes.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}
