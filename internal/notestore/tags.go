package notestore

import (
	"slices"
	"sort"
	"strings"

	"github.com/starford/neuralnotes/internal/models"
)

// TagSuggestionLimit caps SuggestTags.
const TagSuggestionLimit = 5

// NormalizeTag trims and lowercases a tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// AddTag adds a tag to a note. Empty and duplicate tags are ignored.
func (s *Store) AddTag(id, tag string) (*models.Note, error) {
	tag = NormalizeTag(tag)
	if tag == "" {
		return s.Get(id)
	}
	return s.update(id, func(n *models.Note) error {
		if !slices.Contains(n.Tags, tag) {
			n.Tags = append(n.Tags, tag)
		}
		return nil
	})
}

// RemoveTag removes a tag from a note. Removing an absent tag is a no-op.
func (s *Store) RemoveTag(id, tag string) (*models.Note, error) {
	return s.update(id, func(n *models.Note) error {
		if i := slices.Index(n.Tags, tag); i >= 0 {
			n.Tags = slices.Delete(n.Tags, i, i+1)
		}
		return nil
	})
}

// AllTags returns every tag in use, sorted and unique.
func (s *Store) AllTags() []string {
	s.mu.RLock()
	seen := make(map[string]struct{})
	for _, n := range s.notes {
		for _, t := range n.Tags {
			seen[t] = struct{}{}
		}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SuggestTags returns up to TagSuggestionLimit known tags containing query,
// leaving out the tags the note already has. A blank query suggests nothing.
func (s *Store) SuggestTags(noteID, query string) ([]string, error) {
	n, err := s.Get(noteID)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []string{}, nil
	}
	out := []string{}
	for _, t := range s.AllTags() {
		if len(out) == TagSuggestionLimit {
			break
		}
		if strings.Contains(t, q) && !slices.Contains(n.Tags, t) {
			out = append(out, t)
		}
	}
	return out, nil
}
