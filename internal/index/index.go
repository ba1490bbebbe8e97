package index

// NoteIndex is the read and write surface of the index. Consumers depend on
// it rather than *DB.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string, links []string) error
	DeleteNote(id string) error
	GetChecksum(id string) (string, error)
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []GraphLink, error)
	Backlinks(title string) ([]NoteRef, error)
	Close() error
}

var _ NoteIndex = (*DB)(nil)
