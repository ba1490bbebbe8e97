package seed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/neuralnotes/internal/notestore"
	"github.com/starford/neuralnotes/internal/storage"
)

func seedEnv(t *testing.T) (string, *notestore.Store, *Importer) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	store := notestore.New()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return dir, store, NewImporter(store, fs, logger)
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestImport(t *testing.T) {
	dir, store, im := seedEnv(t)
	write(t, dir, "plans.md", "---\ntitle: Plans\ntags: [Q3]\n---\n# Heading\n- [ ] ship it\n")
	write(t, dir, "work/meeting.md", "# Meeting\nsee [[Plans]]\n")
	write(t, dir, "untitled.md", "no heading here")
	write(t, dir, "attachments/notes.md", "not a note")

	n, err := im.Import()
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 3 || store.Len() != 3 {
		t.Fatalf("imported %d, store has %d, want 3", n, store.Len())
	}

	plans, err := store.Get(NoteID("plans.md"))
	if err != nil {
		t.Fatalf("Get plans: %v", err)
	}
	if plans.Title != "Plans" || len(plans.Tags) != 1 || plans.Tags[0] != "q3" {
		t.Errorf("plans = %+v", plans)
	}
	if len(plans.Lines) != 2 || plans.Lines[1] != "- [ ] ship it" {
		t.Errorf("lines = %q", plans.Lines)
	}
	if plans.FolderID != "" {
		t.Errorf("top-level file got folder %q", plans.FolderID)
	}

	meeting, _ := store.Get(NoteID("work/meeting.md"))
	if meeting.FolderID != FolderID("work") {
		t.Errorf("folder = %q", meeting.FolderID)
	}
	f, err := store.Folder(FolderID("work"))
	if err != nil || f.Name != "work" || f.Color != notestore.DefaultFolderColor {
		t.Errorf("folder = %+v, err %v", f, err)
	}

	untitled, _ := store.Get(NoteID("untitled.md"))
	if untitled.Title != "untitled" {
		t.Errorf("stem title = %q", untitled.Title)
	}
}

func TestImport_Idempotent(t *testing.T) {
	dir, store, im := seedEnv(t)
	write(t, dir, "a.md", "# A")
	_, _ = im.Import()

	var events int
	store.Subscribe(func(notestore.Event) { events++ })
	n, _ := im.Import()
	if n != 0 || events != 0 {
		t.Errorf("second import touched %d files, %d events", n, events)
	}
}

func TestImport_RemovesVanishedFiles(t *testing.T) {
	dir, store, im := seedEnv(t)
	write(t, dir, "a.md", "# A")
	write(t, dir, "b.md", "# B")
	_, _ = im.Import()

	_ = os.Remove(filepath.Join(dir, "a.md"))
	_, _ = im.Import()

	if _, err := store.Get(NoteID("a.md")); err == nil {
		t.Error("note for removed file still in store")
	}
	if store.Len() != 1 {
		t.Errorf("store has %d notes, want 1", store.Len())
	}
}

func TestNoteID_Stable(t *testing.T) {
	if NoteID("a/b.md") != NoteID("a/b.md") {
		t.Error("ids differ across calls")
	}
	if NoteID("a/b.md") == NoteID("a/c.md") {
		t.Error("distinct paths share an id")
	}
}

func TestWatcher_NewFileImported(t *testing.T) {
	dir, store, im := seedEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go im.Watch(ctx)
	time.Sleep(100 * time.Millisecond)

	write(t, dir, "new.md", "# New")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		n, err := store.Get(NoteID("new.md"))
		return err == nil && n.Title == "New"
	}, "new file not imported by watcher")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	dir, store, im := seedEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go im.Watch(ctx)
	time.Sleep(100 * time.Millisecond)

	_ = os.MkdirAll(filepath.Join(dir, "ideas"), 0o755)
	time.Sleep(100 * time.Millisecond)
	write(t, dir, "ideas/deep.md", "# Deep")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		n, err := store.Get(NoteID(filepath.Join("ideas", "deep.md")))
		return err == nil && n.FolderID == FolderID("ideas")
	}, "file in new subdir not imported by watcher")
}

func TestWatcher_DeleteRemovesNote(t *testing.T) {
	dir, store, im := seedEnv(t)
	write(t, dir, "del.md", "# Delete Me")
	_, _ = im.Import()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go im.Watch(ctx)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := store.Get(NoteID("del.md"))
		return err != nil
	}, "deleted file still in store")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, store, im := seedEnv(t)
	write(t, dir, "old.md", "# Rename")
	_, _ = im.Import()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go im.Watch(ctx)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(dir, "old.md"), filepath.Join(dir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, oldErr := store.Get(NoteID("old.md"))
		_, newErr := store.Get(NoteID("renamed.md"))
		return oldErr != nil && newErr == nil
	}, "rename reconciliation failed")
}
