// Package index mirrors the note store into SQLite for full-text search and
// the backlink graph. FTS5 is used when built with the sqlite_fts5 tag.
package index

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryDSN keeps the index in process memory.
const MemoryDSN = ":memory:"

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	title_key  TEXT NOT NULL DEFAULT '',
	folder_id  TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	body       TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS links (
	source     TEXT NOT NULL,
	target_key TEXT NOT NULL,
	target     TEXT NOT NULL,
	UNIQUE(source, target_key)
);

CREATE INDEX IF NOT EXISTS idx_notes_title_key ON notes(title_key);
CREATE INDEX IF NOT EXISTS idx_links_source ON links(source);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_key);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens the index database and applies the schema. An empty dsn or
// MemoryDSN gives a private in-memory database.
func Open(dsn string) (*DB, error) {
	memory := dsn == "" || dsn == MemoryDSN
	params := "_busy_timeout=5000&_foreign_keys=on"
	if memory {
		dsn = MemoryDSN
	} else {
		params += "&_journal_mode=WAL"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite3", dsn+sep+params)
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
