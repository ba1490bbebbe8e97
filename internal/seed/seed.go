// Package seed loads notes from a directory of markdown files into the note
// store and keeps them in step with the files while the process runs. The
// vault is never written to.
package seed

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/neuralnotes/internal/apperr"
	"github.com/starford/neuralnotes/internal/models"
	"github.com/starford/neuralnotes/internal/notestore"
	"github.com/starford/neuralnotes/internal/parser"
	"github.com/starford/neuralnotes/internal/storage"
)

// AttachmentsDir holds files served as-is rather than imported as notes.
const AttachmentsDir = "attachments"

var namespace = uuid.MustParse("6f1d3c1e-3b8a-4f57-9a0c-5a1f2e7d9b44")

// NoteID is the stable identifier of the note imported from rel.
func NoteID(rel string) string {
	return uuid.NewSHA1(namespace, []byte("note:"+filepath.ToSlash(rel))).String()
}

// FolderID is the stable identifier of the folder for a top-level directory.
func FolderID(dir string) string {
	return uuid.NewSHA1(namespace, []byte("folder:"+dir)).String()
}

// Importer copies vault files into a store.
type Importer struct {
	store  *notestore.Store
	fs     storage.Provider
	logger *slog.Logger

	mu    sync.Mutex
	known map[string]string // path -> checksum of the imported bytes
}

// NewImporter creates an importer from fs into store.
func NewImporter(store *notestore.Store, fs storage.Provider, logger *slog.Logger) *Importer {
	return &Importer{
		store:  store,
		fs:     fs,
		logger: logger,
		known:  make(map[string]string),
	}
}

// Import brings the store in line with the vault: new or changed files are
// imported and notes whose files disappeared are removed. It returns the
// number of files imported.
func (im *Importer) Import() (int, error) {
	metas, err := im.fs.List("")
	if err != nil {
		return 0, err
	}

	im.mu.Lock()
	known := make(map[string]string, len(im.known))
	for p, cs := range im.known {
		known[p] = cs
	}
	im.mu.Unlock()

	disk := make(map[string]struct{}, len(metas))
	imported := 0
	for _, m := range metas {
		if isAttachment(m.Path) {
			continue
		}
		disk[m.Path] = struct{}{}
		if known[m.Path] == m.Checksum {
			continue
		}
		if err := im.ImportFile(m.Path, m.UpdatedAt); err != nil {
			im.logger.Warn("seed: import failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		imported++
	}

	for p := range known {
		if _, ok := disk[p]; !ok {
			im.Remove(p)
		}
	}
	return imported, nil
}

// ImportFile reads one vault file and puts it in the store.
func (im *Importer) ImportFile(rel string, modTime time.Time) error {
	data, err := im.fs.Read(rel)
	if err != nil {
		return err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return fmt.Errorf("seed: parse %s: %w", rel, err)
	}

	title := res.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	}
	if modTime.IsZero() {
		modTime = time.Now()
	}
	n := &models.Note{
		ID:           NoteID(rel),
		Title:        title,
		Lines:        res.Lines,
		Tags:         res.Tags,
		LastModified: modTime,
	}
	if dir := topDir(rel); dir != "" {
		n.FolderID = im.ensureFolder(dir, modTime)
	}

	created := im.store.Put(n)
	im.mu.Lock()
	im.known[rel] = storage.Checksum(data)
	im.mu.Unlock()

	op := "updated"
	if created {
		op = "created"
	}
	im.logger.Debug("seed: imported", slog.String("path", rel), slog.String("op", op))
	return nil
}

// Remove drops the note imported from rel.
func (im *Importer) Remove(rel string) {
	im.mu.Lock()
	delete(im.known, rel)
	im.mu.Unlock()

	err := im.store.Delete(NoteID(rel))
	switch {
	case err == nil:
		im.logger.Debug("seed: removed", slog.String("path", rel))
	case errors.Is(err, apperr.ErrNotFound):
	default:
		im.logger.Warn("seed: remove failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

// Known reports whether rel has been imported.
func (im *Importer) Known(rel string) bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	_, ok := im.known[rel]
	return ok
}

func (im *Importer) ensureFolder(dir string, created time.Time) string {
	id := FolderID(dir)
	if _, err := im.store.Folder(id); err == nil {
		return id
	}
	im.store.PutFolder(&models.Folder{
		ID:         id,
		Name:       dir,
		Color:      notestore.DefaultFolderColor,
		IsExpanded: true,
		CreatedAt:  created,
	})
	return id
}

// topDir returns the first path segment of rel when rel is inside a
// subdirectory.
func topDir(rel string) string {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

func isAttachment(rel string) bool {
	return topDir(rel) == AttachmentsDir
}
