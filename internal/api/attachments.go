package api

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/neuralnotes/internal/seed"
	"github.com/starford/neuralnotes/internal/storage"
)

// AttachmentHandler serves files from the vault's attachments directory.
// The vault is read-only, so there is no upload.
type AttachmentHandler struct {
	vault storage.Provider
}

// NewAttachmentHandler creates a handler over vault. vault may be nil when
// no seed directory is configured; every request then 404s.
func NewAttachmentHandler(vault storage.Provider) *AttachmentHandler {
	return &AttachmentHandler{vault: vault}
}

// safeName accepts only a plain file name.
func safeName(name string) (string, error) {
	if name == "" {
		return "", errors.New("filename is required")
	}
	cleaned := path.Clean(name)
	if cleaned != path.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsRune(cleaned, '\\') {
		return "", errors.New("invalid filename: " + name)
	}
	return cleaned, nil
}

// ServeFile handles GET /attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name, err := safeName(chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if h.vault == nil {
		http.NotFound(w, r)
		return
	}
	f, err := h.vault.Open(path.Join(seed.AttachmentsDir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	var mod time.Time
	if info, err := f.Stat(); err == nil {
		mod = info.ModTime()
	}
	if rs, ok := f.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, mod, rs)
		return
	}
	_, _ = io.Copy(w, f)
}
