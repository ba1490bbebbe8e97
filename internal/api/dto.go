package api

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/neuralnotes/internal/editor"
	"github.com/starford/neuralnotes/internal/index"
	"github.com/starford/neuralnotes/internal/markdown"
	"github.com/starford/neuralnotes/internal/models"
	"github.com/starford/neuralnotes/internal/notestore"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// notBlank rejects strings made only of whitespace.
var notBlank = validation.By(func(v any) error {
	v, _ = validation.Indirect(v)
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return errors.New("must not be blank")
	}
	return nil
})

// CreateNoteRequest is the request body for creating a note. All fields are
// optional; an empty title becomes "Untitled Note".
type CreateNoteRequest struct {
	Title    string `json:"title" example:"Plans"`
	FolderID string `json:"folder_id" example:"work"`
	Content  string `json:"content" example:"# Plans\n- [ ] ship"`
}

func (r *CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Length(0, 200)),
		validation.Field(&r.Content, validation.Length(0, maxBodyBytes)),
	)
}

// UpdateNoteRequest replaces a note's content.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Updated\nContent"`
}

func (r *UpdateNoteRequest) Validate() error { return nil }

// PatchNoteRequest renames a note or moves it between folders.
type PatchNoteRequest struct {
	Title    *string `json:"title,omitempty" example:"Renamed"`
	FolderID *string `json:"folder_id,omitempty" example:"ideas"`
}

func (r *PatchNoteRequest) Validate() error {
	if r.Title == nil && r.FolderID == nil {
		return errors.New("title or folder_id is required")
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, notBlank, validation.Length(1, 200)),
	)
}

// TagRequest adds a tag to a note.
type TagRequest struct {
	Tag string `json:"tag" example:"planning" validate:"required"`
}

func (r *TagRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Tag, validation.Required, notBlank, validation.Length(1, 64)),
	)
}

// CreateFolderRequest creates a folder. Color defaults to grey.
type CreateFolderRequest struct {
	Name  string `json:"name" example:"Reading" validate:"required"`
	Color string `json:"color" example:"#3b82f6"`
}

func (r *CreateFolderRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, notBlank, validation.Length(1, 100)),
		validation.Field(&r.Color, validation.Match(hexColor).Error("must be a #rrggbb color")),
	)
}

// OpenBacklinkRequest follows [[Title]].
type OpenBacklinkRequest struct {
	Title string `json:"title" example:"Plans" validate:"required"`
}

func (r *OpenBacklinkRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required, notBlank),
	)
}

// OpenSessionRequest starts an editor session.
type OpenSessionRequest struct {
	NoteID string `json:"note_id" validate:"required"`
}

func (r *OpenSessionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.NoteID, validation.Required),
	)
}

// Session operations accepted by POST /sessions/{id}/ops.
const (
	OpSplit          = "split"
	OpBackspace      = "backspace"
	OpMerge          = "merge"
	OpInsert         = "insert"
	OpDelete         = "delete"
	OpUpdate         = "update"
	OpToggle         = "toggle"
	OpUp             = "up"
	OpDown           = "down"
	OpLeft           = "left"
	OpRight          = "right"
	OpFocus          = "focus"
	OpBlur           = "blur"
	OpClick          = "click"
	OpSuggestAccept  = "suggest-accept"
	OpSuggestDismiss = "suggest-dismiss"
)

var sessionOps = []any{
	OpSplit, OpBackspace, OpMerge, OpInsert, OpDelete, OpUpdate, OpToggle,
	OpUp, OpDown, OpLeft, OpRight, OpFocus, OpBlur, OpClick,
	OpSuggestAccept, OpSuggestDismiss,
}

// SessionOpRequest is one editor operation. Which fields matter depends on Op.
type SessionOpRequest struct {
	Op     string        `json:"op" example:"split" validate:"required"`
	Line   int           `json:"line" example:"0"`
	Offset int           `json:"offset" example:"3"`
	Text   string        `json:"text,omitempty"`
	Title  string        `json:"title,omitempty"`
	Click  *editor.Click `json:"click,omitempty"`
}

func (r *SessionOpRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Op, validation.Required, validation.In(sessionOps...)),
		validation.Field(&r.Line, validation.Min(0)),
		validation.Field(&r.Offset, validation.Min(0)),
		validation.Field(&r.Title, validation.When(r.Op == OpSuggestAccept, validation.Required)),
		validation.Field(&r.Click, validation.When(r.Op == OpClick, validation.Required)),
	)
}

// NoteDetail is a note with the notes that link to it.
type NoteDetail struct {
	*models.Note
	Backlinks []index.NoteRef `json:"backlinks"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []*models.Note `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// RenderResponse is the read-only view of a note.
type RenderResponse struct {
	ID    string          `json:"id"`
	Items []markdown.View `json:"items"`
	HTML  string          `json:"html"`
}

// SessionResponse is the editor state plus its rendered items.
type SessionResponse struct {
	editor.State
	Items []markdown.View `json:"items"`
}

// OpResponse is returned by POST /sessions/{id}/ops.
type OpResponse struct {
	SessionResponse
	Opened *editor.OpenResult `json:"opened,omitempty"`
}

// CaretResponse reports the flushed caret, if any was pending.
type CaretResponse struct {
	Caret   editor.Caret `json:"caret"`
	Flushed bool         `json:"flushed"`
}

// SidebarResponse groups notes by folder.
type SidebarResponse struct {
	Groups []notestore.FolderGroup `json:"groups"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the link graph.
type GraphResponse struct {
	Nodes []index.GraphNode `json:"nodes" validate:"required"`
	Links []index.GraphLink `json:"links" validate:"required"`
}
