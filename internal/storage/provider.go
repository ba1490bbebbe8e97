// Package storage gives read-only access to a seed vault on disk.
package storage

import (
	"io/fs"
	"time"
)

// FileMeta describes one markdown file in the vault.
type FileMeta struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider reads vault files. Paths are relative to the vault root.
type Provider interface {
	// Root returns the absolute vault directory.
	Root() string
	// List returns metadata for every .md file under dir.
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Open opens the file at path for streaming.
	Open(path string) (fs.File, error)
}
