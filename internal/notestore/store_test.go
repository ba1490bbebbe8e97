package notestore

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/starford/neuralnotes/internal/apperr"
	"github.com/starford/neuralnotes/internal/editor"
	"github.com/starford/neuralnotes/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	var mu sync.Mutex
	seq := 0
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return New(
		WithIDFunc(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		}),
	)
}

func TestCreate_PrependsAndSelects(t *testing.T) {
	s := newTestStore(t)
	a := s.Create("A")
	b := s.Create("")

	list := s.List()
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("order = %v, want newest first", list)
	}
	if b.Title != DefaultTitle {
		t.Errorf("title = %q, want %q", b.Title, DefaultTitle)
	}
	if len(b.Lines) != 1 || b.Lines[0] != "" {
		t.Errorf("lines = %q, want one empty line", b.Lines)
	}
	sel, ok := s.Selected()
	if !ok || sel.ID != b.ID {
		t.Errorf("selected = %v, want %s", sel, b.ID)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	n := s.Create("A")
	got, _ := s.Get(n.ID)
	got.Lines[0] = "mutated"

	again, _ := s.Get(n.ID)
	if again.Lines[0] != "" {
		t.Error("stored note was aliased by caller copy")
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestApply_Edit(t *testing.T) {
	s := newTestStore(t)
	n := s.Create("A")
	n.Lines = []string{"# Title", "body text"}

	got, err := s.Apply(editor.EditAction{Note: n})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.Content != "# Title\nbody text" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Preview != "# Title" {
		t.Errorf("preview = %q", got.Preview)
	}
	if !got.LastModified.After(n.LastModified) {
		t.Error("last modified not bumped")
	}
}

func TestApply_NavigateSelects(t *testing.T) {
	s := newTestStore(t)
	a := s.Create("A")
	s.Create("B")

	got, err := s.Apply(editor.NavigateAction{ID: a.ID})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	sel, _ := s.Selected()
	if got.ID != a.ID || sel.ID != a.ID {
		t.Errorf("selected %s, want %s", sel.ID, a.ID)
	}
	if s.Len() != 2 {
		t.Errorf("navigate changed note count to %d", s.Len())
	}
}

func TestApply_CreateSelectsNewNote(t *testing.T) {
	s := newTestStore(t)
	s.Create("A")
	got, err := s.Apply(editor.CreateAction{Title: "Nope"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.Title != "Nope" || len(got.Lines) != 1 {
		t.Errorf("created = %+v", got)
	}
	sel, _ := s.Selected()
	if sel.ID != got.ID {
		t.Error("created note not selected")
	}
}

func TestReplace_IfMatch(t *testing.T) {
	s := newTestStore(t)
	n := s.Create("A")

	if _, err := s.Replace(n.ID, []string{"x"}, "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	got, err := s.Replace(n.ID, []string{"x", "y"}, n.Checksum)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got.Content != "x\ny" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Checksum == n.Checksum {
		t.Error("checksum unchanged after replace")
	}
	if _, err := s.Replace(n.ID, []string{}, ""); err != nil {
		t.Fatalf("Replace without If-Match: %v", err)
	}
	again, _ := s.Get(n.ID)
	if len(again.Lines) != 1 || again.Lines[0] != "" {
		t.Errorf("empty replace should leave one empty line, got %q", again.Lines)
	}
}

func TestDelete_ClearsSelection(t *testing.T) {
	s := newTestStore(t)
	n := s.Create("A")
	if err := s.Delete(n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Selected(); ok {
		t.Error("selection should be cleared")
	}
	if err := s.Delete(n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestFilter(t *testing.T) {
	s := newTestStore(t)
	a := s.Create("Shopping")
	b := s.Create("Work")
	_, _ = s.Replace(b.ID, []string{"buy MILK later"}, "")

	tests := []struct {
		q    string
		want int
	}{
		{"", 2},
		{"shop", 1},
		{"milk", 1},
		{"zzz", 0},
	}
	for _, tt := range tests {
		if got := s.Filter(tt.q); len(got) != tt.want {
			t.Errorf("Filter(%q) = %d notes, want %d", tt.q, len(got), tt.want)
		}
	}
	if got := s.Filter("SHOP"); len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("case-insensitive filter failed: %v", got)
	}
}

func TestTags(t *testing.T) {
	s := newTestStore(t)
	a := s.Create("A")
	b := s.Create("B")

	_, _ = s.AddTag(a.ID, "  Go ")
	_, _ = s.AddTag(a.ID, "go")
	_, _ = s.AddTag(a.ID, "")
	_, _ = s.AddTag(b.ID, "golang")
	_, _ = s.AddTag(b.ID, "rust")

	got, _ := s.Get(a.ID)
	if len(got.Tags) != 1 || got.Tags[0] != "go" {
		t.Errorf("tags = %q, want [go]", got.Tags)
	}
	if all := s.AllTags(); len(all) != 3 || all[0] != "go" || all[2] != "rust" {
		t.Errorf("AllTags = %q", all)
	}

	sug, _ := s.SuggestTags(a.ID, "GO")
	if len(sug) != 1 || sug[0] != "golang" {
		t.Errorf("SuggestTags = %q, want [golang]", sug)
	}
	sug, _ = s.SuggestTags(a.ID, " ")
	if len(sug) != 0 {
		t.Errorf("blank query suggested %q", sug)
	}

	_, _ = s.RemoveTag(a.ID, "go")
	got, _ = s.Get(a.ID)
	if len(got.Tags) != 0 {
		t.Errorf("tags after remove = %q", got.Tags)
	}
}

func TestSuggestTags_Limit(t *testing.T) {
	s := newTestStore(t)
	a := s.Create("A")
	b := s.Create("B")
	for i := 0; i < 8; i++ {
		_, _ = s.AddTag(b.ID, fmt.Sprintf("tag%d", i))
	}
	sug, _ := s.SuggestTags(a.ID, "tag")
	if len(sug) != TagSuggestionLimit {
		t.Errorf("got %d suggestions, want %d", len(sug), TagSuggestionLimit)
	}
}

func TestFolders(t *testing.T) {
	s := newTestStore(t)
	f, err := s.CreateFolder("Projects", "")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if f.Color != DefaultFolderColor || !f.IsExpanded {
		t.Errorf("folder = %+v", f)
	}
	if _, err := s.CreateFolder("  ", ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("blank name err = %v", err)
	}

	toggled, _ := s.ToggleFolder(f.ID)
	if toggled.IsExpanded {
		t.Error("toggle should collapse")
	}

	n := s.Create("A")
	moved, err := s.MoveToFolder(n.ID, f.ID)
	if err != nil || moved.FolderID != f.ID {
		t.Fatalf("MoveToFolder: %v, %+v", err, moved)
	}
	if _, err := s.MoveToFolder(n.ID, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("move to missing folder err = %v", err)
	}
	cleared, _ := s.MoveToFolder(n.ID, Uncategorized)
	if cleared.FolderID != "" {
		t.Errorf("folder id = %q, want cleared", cleared.FolderID)
	}
}

func TestNotesByFolder(t *testing.T) {
	s := newTestStore(t)
	f, _ := s.CreateFolder("Work", "#fff")
	a := s.Create("In folder")
	_, _ = s.MoveToFolder(a.ID, f.ID)
	s.Create("Loose")
	s.Put(&models.Note{ID: "orphan", Title: "Orphan", Lines: []string{"x"}, FolderID: "gone"})

	groups := s.NotesByFolder("")
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].ID != f.ID || len(groups[0].Notes) != 1 {
		t.Errorf("folder group = %+v", groups[0])
	}
	if groups[1].ID != Uncategorized || len(groups[1].Notes) != 2 {
		t.Errorf("uncategorized group has %d notes, want 2", len(groups[1].Notes))
	}

	filtered := s.NotesByFolder("loose")
	if len(filtered[0].Notes) != 0 || len(filtered[1].Notes) != 1 {
		t.Errorf("filtered grouping wrong: %+v", filtered)
	}
}

func TestObservers(t *testing.T) {
	s := newTestStore(t)
	var kinds []EventKind
	s.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	n := s.Create("A")
	_, _ = s.Replace(n.ID, []string{"hello"}, "")
	_, _ = s.Select(n.ID)
	_ = s.Delete(n.ID)
	_, _ = s.CreateFolder("F", "")

	want := []EventKind{NoteCreated, NoteSelected, NoteUpdated, NoteSelected, NoteDeleted, FolderCreated}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestObserver_SeesDerivedFields(t *testing.T) {
	s := newTestStore(t)
	n := s.Create("A")
	var content string
	s.Subscribe(func(ev Event) {
		if ev.Kind == NoteUpdated {
			content = ev.Note.Content
		}
	})
	_, _ = s.Replace(n.ID, []string{"a", "b"}, "")
	if content != "a\nb" {
		t.Errorf("observer saw content %q", content)
	}
}

func TestObserver_MayReadStore(t *testing.T) {
	s := newTestStore(t)
	var titles int
	s.Subscribe(func(Event) { titles = len(s.Targets()) })
	s.Create("A")
	if titles != 1 {
		t.Errorf("observer saw %d targets", titles)
	}
}

func TestLoadBuiltin(t *testing.T) {
	s := newTestStore(t)
	s.LoadBuiltin()

	if got := len(s.Folders()); got != 3 {
		t.Errorf("folders = %d, want 3", got)
	}
	list := s.List()
	if len(list) != 2 || list[0].Title != "Welcome to Neural Notes" {
		t.Fatalf("notes = %v", list)
	}
	sel, ok := s.Selected()
	if !ok || sel.ID != "welcome" {
		t.Errorf("selected = %v", sel)
	}
	if _, ok := s.Resolver().Lookup("meeting notes"); !ok {
		t.Error("builtin backlink target not resolvable")
	}
}
