package notestore

import (
	"fmt"
	"strings"

	"github.com/starford/neuralnotes/internal/apperr"
	"github.com/starford/neuralnotes/internal/models"
)

const (
	// DefaultFolderColor is assigned to folders created without a color.
	DefaultFolderColor = "#6b7280"

	// Uncategorized is the pseudo folder id for notes without a folder.
	Uncategorized = "uncategorized"
)

func (s *Store) folderIndex(id string) int {
	for i, f := range s.folders {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// CreateFolder appends an expanded folder.
func (s *Store) CreateFolder(name, color string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("empty folder name: %w", apperr.ErrInvalid)
	}
	if color == "" {
		color = DefaultFolderColor
	}
	f := &models.Folder{
		ID:         s.newID(),
		Name:       name,
		Color:      color,
		IsExpanded: true,
		CreatedAt:  s.now(),
	}
	s.mu.Lock()
	s.folders = append(s.folders, f)
	out := f.Clone()
	s.unlockAndEmit(Event{Kind: FolderCreated, ID: f.ID, Folder: out.Clone()})
	return out, nil
}

// PutFolder inserts f or replaces the folder with the same id.
func (s *Store) PutFolder(f *models.Folder) {
	c := f.Clone()
	s.mu.Lock()
	kind := FolderUpdated
	if i := s.folderIndex(c.ID); i >= 0 {
		s.folders[i] = c
	} else {
		kind = FolderCreated
		s.folders = append(s.folders, c)
	}
	s.unlockAndEmit(Event{Kind: kind, ID: c.ID, Folder: c.Clone()})
}

// ToggleFolder flips a folder's expanded state.
func (s *Store) ToggleFolder(id string) (*models.Folder, error) {
	s.mu.Lock()
	i := s.folderIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, notFound("folder", id)
	}
	f := s.folders[i].Clone()
	f.IsExpanded = !f.IsExpanded
	s.folders[i] = f
	out := f.Clone()
	s.unlockAndEmit(Event{Kind: FolderUpdated, ID: id, Folder: out.Clone()})
	return out, nil
}

// Folder returns a copy of one folder.
func (s *Store) Folder(id string) (*models.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.folderIndex(id)
	if i < 0 {
		return nil, notFound("folder", id)
	}
	return s.folders[i].Clone(), nil
}

// Folders returns copies of every folder in creation order.
func (s *Store) Folders() []*models.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Folder, len(s.folders))
	for i, f := range s.folders {
		out[i] = f.Clone()
	}
	return out
}

// MoveToFolder assigns a note to a folder. An empty id or Uncategorized
// clears the assignment.
func (s *Store) MoveToFolder(noteID, folderID string) (*models.Note, error) {
	if folderID == Uncategorized {
		folderID = ""
	}
	if folderID != "" {
		if _, err := s.Folder(folderID); err != nil {
			return nil, err
		}
	}
	return s.update(noteID, func(n *models.Note) error {
		n.FolderID = folderID
		return nil
	})
}

// FolderGroup is one sidebar section. Folder is nil for the uncategorized
// group.
type FolderGroup struct {
	ID     string         `json:"id"`
	Folder *models.Folder `json:"folder,omitempty"`
	Notes  []*models.Note `json:"notes"`
}

// NotesByFolder groups the notes matching query by folder. Every folder
// gets a group, even when empty; the uncategorized group comes last and
// also collects notes whose folder no longer exists.
func (s *Store) NotesByFolder(query string) []FolderGroup {
	notes := s.Filter(query)
	folders := s.Folders()

	groups := make([]FolderGroup, 0, len(folders)+1)
	pos := make(map[string]int, len(folders))
	for _, f := range folders {
		pos[f.ID] = len(groups)
		groups = append(groups, FolderGroup{ID: f.ID, Folder: f, Notes: []*models.Note{}})
	}
	groups = append(groups, FolderGroup{ID: Uncategorized, Notes: []*models.Note{}})
	last := len(groups) - 1

	for _, n := range notes {
		i, ok := pos[n.FolderID]
		if !ok {
			i = last
		}
		groups[i].Notes = append(groups[i].Notes, n)
	}
	return groups
}
