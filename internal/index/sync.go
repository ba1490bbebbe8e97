package index

import (
	"log/slog"

	"github.com/starford/neuralnotes/internal/backlink"
	"github.com/starford/neuralnotes/internal/models"
	"github.com/starford/neuralnotes/internal/notestore"
)

// Sync brings the index in line with notes:
//   - new or changed notes are upserted
//   - indexed notes missing from notes are deleted
func Sync(db NoteIndex, notes []*models.Note, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	live := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		live[n.ID] = struct{}{}
		if checksums[n.ID] == n.Checksum {
			continue
		}
		if err := IndexNote(db, n); err != nil {
			logger.Warn("sync: index failed", slog.String("id", n.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("id", n.ID))
		}
	}

	for id := range checksums {
		if _, ok := live[id]; ok {
			continue
		}
		if err := db.DeleteNote(id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("id", id))
		}
	}
	return nil
}

// IndexNote upserts n together with the titles it links to.
func IndexNote(db NoteIndex, n *models.Note) error {
	return db.UpsertNote(NoteRow{
		ID:        n.ID,
		Title:     n.Title,
		FolderID:  n.FolderID,
		Checksum:  n.Checksum,
		Tags:      n.Tags,
		UpdatedAt: n.LastModified,
	}, n.Content, backlink.Titles(n.Content))
}

// Observer keeps the index current with store events.
func Observer(db NoteIndex, logger *slog.Logger) notestore.Observer {
	return func(ev notestore.Event) {
		var err error
		switch ev.Kind {
		case notestore.NoteCreated, notestore.NoteUpdated:
			err = IndexNote(db, ev.Note)
		case notestore.NoteDeleted:
			err = db.DeleteNote(ev.ID)
		default:
			return
		}
		if err != nil {
			logger.Warn("index: apply event failed",
				slog.String("kind", string(ev.Kind)),
				slog.String("id", ev.ID),
				slog.String("error", err.Error()))
		}
	}
}
