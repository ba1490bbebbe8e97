package notestore

import (
	"time"

	"github.com/starford/neuralnotes/internal/models"
)

// LoadBuiltin fills the store with the sample folders and notes shown on a
// fresh start. The first note is selected.
func (s *Store) LoadBuiltin() {
	now := s.now()
	day := 24 * time.Hour

	for _, f := range []*models.Folder{
		{ID: "personal", Name: "Personal", Color: "#8b5cf6", IsExpanded: true, CreatedAt: now.Add(-2 * day)},
		{ID: "work", Name: "Work", Color: "#10b981", IsExpanded: true, CreatedAt: now.Add(-day)},
		{ID: "ideas", Name: "Ideas", Color: "#f59e0b", CreatedAt: now},
	} {
		s.PutFolder(f)
	}

	// Put prepends, so the oldest note goes in first.
	s.Put(&models.Note{
		ID:           "meeting-notes",
		Title:        "Meeting Notes",
		FolderID:     "work",
		LastModified: now.Add(-day),
		Lines: []string{
			"# Meeting Notes",
			"",
			"## Today's Agenda",
			"- [x] Discussed project timeline",
			"- [x] Assigned tasks",
			"- [ ] Next meeting scheduled",
			"",
			"### Action Items",
			"1. Review code by **Friday**",
			"2. Update documentation",
			"3. Prepare demo",
			"",
			"> Important: Remember to follow up on pending items",
		},
	})
	s.Put(&models.Note{
		ID:           "welcome",
		Title:        "Welcome to Neural Notes",
		FolderID:     "personal",
		LastModified: now,
		Lines: []string{
			"# Welcome to Neural Notes",
			"",
			"This is your first note! You can use **markdown** to format your text.",
			"",
			"## Features",
			"- **Bold** and *italic* text",
			"- Lists and checkboxes",
			"- `inline code` examples",
			"- Code blocks with enhanced styling",
			"- Links to other notes like [[Meeting Notes]]",
			"",
			"### Code Examples",
			"",
			"Here's some `inline code` that should look great!",
			"",
			"```javascript",
			"function greetUser(name) {",
			"  console.log(`Hello, ${name}!`);",
			"  return `Welcome to Neural Notes, ${name}`;",
			"}",
			"",
			`greetUser("Developer");`,
			"```",
			"",
			"You can also mix `code` with **bold** and *italic* text.",
			"",
			"Start writing your thoughts here!",
		},
	})
	_, _ = s.Select("welcome")
}
