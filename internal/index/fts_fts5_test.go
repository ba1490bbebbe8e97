//go:build sqlite_fts5

package index

import (
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := NoteRow{
		ID:        "fts",
		Title:     "FTS Note",
		Checksum:  "f1",
		Tags:      []string{"search"},
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertNote(row, "Neural Notes provides powerful full-text search.", nil); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}

	results, err := db.Search("power", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "fts" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_QuotesUserInput(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{ID: "q", Checksum: "q"}, "a note", nil)
	if _, err := db.Search(`"unbalanced AND (`, 10); err != nil {
		t.Errorf("search with FTS syntax characters failed: %v", err)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{ID: "gone", Checksum: "g"}, "vanishing content", nil)
	_ = db.DeleteNote("gone")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.ID == "gone" {
			t.Error("deleted note still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{ID: "evo", Title: "Old", Checksum: "1", UpdatedAt: now}, "original text", nil)
	_ = db.UpsertNote(NoteRow{ID: "evo", Title: "New", Checksum: "2", UpdatedAt: now}, "replacement text", nil)

	if results, _ := db.Search("original", 10); len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ := db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
