package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/neuralnotes/internal/editor"
	"github.com/starford/neuralnotes/internal/models"
	"github.com/starford/neuralnotes/internal/notestore"
	"github.com/starford/neuralnotes/internal/testutil"
)

// testEnv wires a router over an empty in-memory store. A non-empty token
// turns on auth.
func testEnv(t *testing.T, token string) (*testutil.Env, http.Handler) {
	t.Helper()
	env := testutil.NewEnv(t)
	router := NewRouter(Deps{
		Store:    env.Store,
		Sessions: env.Sessions,
		Renderer: env.Renderer,
		Index:    env.Index,
	}, token != "", token)
	return env, router
}

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func createNote(t *testing.T, h http.Handler, title, content string) models.Note {
	t.Helper()
	w := do(t, h, http.MethodPost, "/notes", CreateNoteRequest{Title: title, Content: content})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return decode[models.Note](t, w)
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	created := createNote(t, router, "Hello", "# Hello\nWorld")
	if created.Title != "Hello" || len(created.Lines) != 2 {
		t.Fatalf("created = %+v", created)
	}

	w := do(t, router, http.MethodGet, "/notes/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	note := decode[NoteDetail](t, w)
	if note.Content != "# Hello\nWorld" {
		t.Errorf("content = %q", note.Content)
	}
	if w.Header().Get("ETag") != `"`+note.Checksum+`"` {
		t.Errorf("etag = %q", w.Header().Get("ETag"))
	}
}

func TestCreateNote_DefaultTitleAndSelection(t *testing.T) {
	env, router := testEnv(t, "")

	created := createNote(t, router, "", "")
	if created.Title != notestore.DefaultTitle {
		t.Errorf("title = %q", created.Title)
	}
	if len(created.Lines) != 1 || created.Lines[0] != "" {
		t.Errorf("lines = %q", created.Lines)
	}
	if sel, ok := env.Store.Selected(); !ok || sel.ID != created.ID {
		t.Error("new note not selected")
	}

	w := do(t, router, http.MethodGet, "/selected", nil)
	if w.Code != http.StatusOK || decode[models.Note](t, w).ID != created.ID {
		t.Errorf("GET /selected = %d %s", w.Code, w.Body.String())
	}
}

func TestCreateNote_UnknownFolder(t *testing.T) {
	env, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "x", FolderID: "nope"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if env.Store.Len() != 0 {
		t.Error("note created despite bad folder")
	}
}

func TestGetNote_Backlinks(t *testing.T) {
	_, router := testEnv(t, "")

	plans := createNote(t, router, "Plans", "# Plans")
	createNote(t, router, "Meeting", "see [[plans]] today")

	w := do(t, router, http.MethodGet, "/notes/"+plans.ID, nil)
	detail := decode[NoteDetail](t, w)
	if len(detail.Backlinks) != 1 || detail.Backlinks[0].Title != "Meeting" {
		t.Errorf("backlinks = %+v", detail.Backlinks)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/notes/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, "Lock", "v1")

	w := do(t, router, http.MethodPut, "/notes/"+created.ID, UpdateNoteRequest{Content: "v2\nmore"},
		"If-Match", `"`+created.Checksum+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}
	updated := decode[models.Note](t, w)
	if len(updated.Lines) != 2 || updated.Lines[1] != "more" {
		t.Errorf("lines = %q", updated.Lines)
	}

	w = do(t, router, http.MethodPut, "/notes/"+created.ID, UpdateNoteRequest{Content: "v3"},
		"If-Match", created.Checksum)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, "No lock", "v1")

	w := do(t, router, http.MethodPut, "/notes/"+created.ID, UpdateNoteRequest{Content: ""})
	if w.Code != http.StatusOK {
		t.Fatalf("update without If-Match = %d, want 200", w.Code)
	}
	if n := decode[models.Note](t, w); len(n.Lines) != 1 || n.Lines[0] != "" {
		t.Errorf("empty content should leave one empty line, got %q", n.Lines)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPut, "/notes/missing", UpdateNoteRequest{Content: "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestPatchNote(t *testing.T) {
	env, router := testEnv(t, "")
	created := createNote(t, router, "Old", "")
	f, _ := env.Store.CreateFolder("Work", "")

	title := "New"
	w := do(t, router, http.MethodPatch, "/notes/"+created.ID, PatchNoteRequest{Title: &title, FolderID: &f.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d %s", w.Code, w.Body.String())
	}
	n := decode[models.Note](t, w)
	if n.Title != "New" || n.FolderID != f.ID {
		t.Errorf("patched = %+v", n)
	}

	blank := "  "
	if w := do(t, router, http.MethodPatch, "/notes/"+created.ID, PatchNoteRequest{Title: &blank}); w.Code != http.StatusBadRequest {
		t.Errorf("blank title = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPatch, "/notes/"+created.ID, map[string]any{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty patch = %d, want 400", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, "Bye", "gone")

	if w := do(t, router, http.MethodDelete, "/notes/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/notes/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	env, router := testEnv(t, "")
	f, _ := env.Store.CreateFolder("Ideas", "")
	a := createNote(t, router, "Alpha", "apples")
	createNote(t, router, "Beta", "bananas")
	_, _ = env.Store.MoveToFolder(a.ID, f.ID)

	resp := decode[NoteListResponse](t, do(t, router, http.MethodGet, "/notes", nil))
	if resp.Total != 2 || resp.Notes[0].Title != "Beta" {
		t.Errorf("list = %+v", resp)
	}

	resp = decode[NoteListResponse](t, do(t, router, http.MethodGet, "/notes?q=APPLE", nil))
	if resp.Total != 1 || resp.Notes[0].ID != a.ID {
		t.Errorf("filtered = %+v", resp)
	}

	resp = decode[NoteListResponse](t, do(t, router, http.MethodGet, "/notes?folder=uncategorized", nil))
	if resp.Total != 1 || resp.Notes[0].Title != "Beta" {
		t.Errorf("uncategorized = %+v", resp)
	}
}

func TestRenderNote(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "Plans", "")
	n := createNote(t, router, "Doc", "- [x] done\nsee [[Plans]] and [[Nope]]\n```go\nx := 1\n```")

	w := do(t, router, http.MethodGet, "/notes/"+n.ID+"/render", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("render = %d", w.Code)
	}
	resp := decode[RenderResponse](t, w)
	if len(resp.Items) != 3 {
		t.Fatalf("items = %d, want 3 (checkbox, line, code block)", len(resp.Items))
	}
	if resp.Items[2].Type != editor.ItemCodeBlock || resp.Items[2].Language != "go" {
		t.Errorf("code item = %+v", resp.Items[2].Item)
	}
	for _, want := range []string{"backlink-existing", "backlink-missing", "☑"} {
		if !strings.Contains(resp.HTML, want) {
			t.Errorf("html missing %q:\n%s", want, resp.HTML)
		}
	}
}

func TestTags(t *testing.T) {
	_, router := testEnv(t, "")
	a := createNote(t, router, "A", "")
	b := createNote(t, router, "B", "")

	if w := do(t, router, http.MethodPost, "/notes/"+a.ID+"/tags", TagRequest{Tag: "Planning"}); w.Code != http.StatusOK {
		t.Fatalf("add tag = %d %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, "/notes/"+a.ID+"/tags", TagRequest{Tag: " "}); w.Code != http.StatusBadRequest {
		t.Errorf("blank tag = %d, want 400", w.Code)
	}

	w := do(t, router, http.MethodGet, "/notes/"+b.ID+"/tags/suggest?q=plan", nil)
	got := decode[map[string][]string](t, w)["suggestions"]
	if len(got) != 1 || got[0] != "planning" {
		t.Errorf("suggestions = %v", got)
	}

	w = do(t, router, http.MethodDelete, "/notes/"+a.ID+"/tags/planning", nil)
	if n := decode[models.Note](t, w); len(n.Tags) != 0 {
		t.Errorf("tags after remove = %v", n.Tags)
	}
}

func TestFoldersAndSidebar(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/folders", CreateFolderRequest{Name: "Reading", Color: "#3b82f6"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create folder = %d %s", w.Code, w.Body.String())
	}
	f := decode[models.Folder](t, w)
	if !f.IsExpanded {
		t.Error("new folder should be expanded")
	}
	if w := do(t, router, http.MethodPost, "/folders", CreateFolderRequest{Name: "x", Color: "red"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad color = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/folders/"+f.ID+"/toggle", nil)
	if decode[models.Folder](t, w).IsExpanded {
		t.Error("toggle did not collapse")
	}

	createNote(t, router, "Loose", "")
	resp := decode[SidebarResponse](t, do(t, router, http.MethodGet, "/sidebar", nil))
	if len(resp.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(resp.Groups))
	}
	last := resp.Groups[len(resp.Groups)-1]
	if last.ID != notestore.Uncategorized || len(last.Notes) != 1 {
		t.Errorf("uncategorized group = %+v", last)
	}
}

func TestOpenBacklink(t *testing.T) {
	env, router := testEnv(t, "")
	plans := createNote(t, router, "Plans", "")
	createNote(t, router, "Other", "")

	w := do(t, router, http.MethodPost, "/backlinks/open", OpenBacklinkRequest{Title: "plans"})
	if w.Code != http.StatusOK {
		t.Fatalf("open existing = %d", w.Code)
	}
	res := decode[editor.OpenResult](t, w)
	if res.Action != "navigate" || res.Note.ID != plans.ID {
		t.Errorf("result = %+v", res)
	}

	w = do(t, router, http.MethodPost, "/backlinks/open", OpenBacklinkRequest{Title: "Nope"})
	if w.Code != http.StatusCreated {
		t.Fatalf("open missing = %d", w.Code)
	}
	res = decode[editor.OpenResult](t, w)
	if !res.Created || res.Note.Title != "Nope" {
		t.Errorf("result = %+v", res)
	}
	if sel, _ := env.Store.Selected(); sel.ID != res.Note.ID {
		t.Error("created note not selected")
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "Find", "uniquetoken here")

	w := do(t, router, http.MethodGet, "/search?q=uniquetoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	if resp := decode[SearchResponse](t, w); len(resp.Results) != 1 {
		t.Errorf("search results = %d, want 1", len(resp.Results))
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search without q = %d, want 400", w.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "A", "links to [[B]]")
	createNote(t, router, "B", "links to [[A]] and [[C]]")

	resp := decode[GraphResponse](t, do(t, router, http.MethodGet, "/graph", nil))
	if len(resp.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(resp.Nodes))
	}
	if len(resp.Links) != 3 {
		t.Errorf("links = %d, want 3", len(resp.Links))
	}
}

func TestSessionLifecycle(t *testing.T) {
	env, router := testEnv(t, "")
	n := createNote(t, router, "Doc", "hello")

	w := do(t, router, http.MethodPost, "/sessions", OpenSessionRequest{NoteID: n.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("open session = %d %s", w.Code, w.Body.String())
	}
	sess := decode[SessionResponse](t, w)
	base := "/sessions/" + sess.SessionID

	w = do(t, router, http.MethodPost, base+"/ops", SessionOpRequest{Op: OpSplit, Line: 0, Offset: 3})
	if w.Code != http.StatusOK {
		t.Fatalf("split = %d %s", w.Code, w.Body.String())
	}
	op := decode[OpResponse](t, w)
	if got := op.Note.Lines; len(got) != 2 || got[0] != "hel" || got[1] != "lo" {
		t.Errorf("lines after split = %q", got)
	}
	if op.Pending == nil || op.Pending.Line != 1 || op.Pending.Offset != 0 {
		t.Errorf("pending caret = %+v", op.Pending)
	}

	stored, _ := env.Store.Get(n.ID)
	if stored.Content != "hel\nlo" {
		t.Errorf("store content = %q", stored.Content)
	}

	w = do(t, router, http.MethodPost, base+"/caret", nil)
	if c := decode[CaretResponse](t, w); !c.Flushed || c.Caret.Line != 1 {
		t.Errorf("caret = %+v", c)
	}

	w = do(t, router, http.MethodPost, base+"/ops", SessionOpRequest{Op: OpBackspace, Line: 1, Offset: 0})
	if op := decode[OpResponse](t, w); op.Note.Content != "hello" {
		t.Errorf("content after merge = %q", op.Note.Content)
	}

	if w := do(t, router, http.MethodDelete, base, nil); w.Code != http.StatusNoContent {
		t.Errorf("close = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, base, nil); w.Code != http.StatusNotFound {
		t.Errorf("get closed session = %d, want 404", w.Code)
	}
}

func TestSessionOps_Validation(t *testing.T) {
	_, router := testEnv(t, "")
	n := createNote(t, router, "Doc", "")
	sess := decode[SessionResponse](t, do(t, router, http.MethodPost, "/sessions", OpenSessionRequest{NoteID: n.ID}))
	base := "/sessions/" + sess.SessionID + "/ops"

	for name, req := range map[string]SessionOpRequest{
		"unknown op":      {Op: "explode"},
		"click no click":  {Op: OpClick},
		"accept no title": {Op: OpSuggestAccept},
		"negative line":   {Op: OpFocus, Line: -1},
	} {
		if w := do(t, router, http.MethodPost, base, req); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, w.Code)
		}
	}
	if w := do(t, router, http.MethodPost, "/sessions", OpenSessionRequest{NoteID: "missing"}); w.Code != http.StatusNotFound {
		t.Errorf("open on missing note = %d, want 404", w.Code)
	}
}

func TestSessionClickBacklinkCreatesNote(t *testing.T) {
	env, router := testEnv(t, "")
	n := createNote(t, router, "Doc", "see [[Nope]]")
	sess := decode[SessionResponse](t, do(t, router, http.MethodPost, "/sessions", OpenSessionRequest{NoteID: n.ID}))

	if len(sess.Items) != 1 || sess.Items[0].Markup == nil || !strings.Contains(sess.Items[0].Markup.HTML, "backlink-missing") {
		t.Fatalf("items = %+v", sess.Items)
	}

	w := do(t, router, http.MethodPost, "/sessions/"+sess.SessionID+"/ops", SessionOpRequest{
		Op:    OpClick,
		Click: &editor.Click{Kind: editor.ClickBacklink, Title: "Nope"},
	})
	op := decode[OpResponse](t, w)
	if op.Opened == nil || !op.Opened.Created {
		t.Fatalf("opened = %+v", op.Opened)
	}
	if env.Store.Len() != 2 {
		t.Errorf("store has %d notes, want 2", env.Store.Len())
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret")
	if w := do(t, router, http.MethodGet, "/notes", nil, "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret")
	if w := do(t, router, http.MethodGet, "/notes", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryTokenOnlyForGet(t *testing.T) {
	_, router := testEnv(t, "secret")
	if w := do(t, router, http.MethodGet, "/notes?access_token=secret", nil); w.Code != http.StatusOK {
		t.Errorf("GET with query token = %d, want 200", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/notes?access_token=secret", CreateNoteRequest{}); w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

// testEnvWithSSE creates a router with a stub SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, token string) http.Handler {
	t.Helper()
	env := testutil.NewEnv(t)
	events := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return NewRouter(Deps{
		Store:    env.Store,
		Sessions: env.Sessions,
		Renderer: env.Renderer,
		Events:   events,
	}, token != "", token)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, "secret")
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

func attachmentRouter(t *testing.T) (string, http.Handler) {
	t.Helper()
	dir, vault := testutil.TestVault(t)
	ah := NewAttachmentHandler(vault)
	r := chi.NewRouter()
	r.Get("/attachments/{filename}", ah.ServeFile)
	return dir, r
}

func TestServeAttachment(t *testing.T) {
	dir, router := attachmentRouter(t)
	_ = os.MkdirAll(filepath.Join(dir, "attachments"), 0o755)
	_ = os.WriteFile(filepath.Join(dir, "attachments", "pic.png"), []byte("PNGDATA"), 0o644)

	w := do(t, router, http.MethodGet, "/attachments/pic.png", nil)
	if w.Code != http.StatusOK || w.Body.String() != "PNGDATA" {
		t.Errorf("serve = %d %q", w.Code, w.Body.String())
	}
}

func TestServeAttachment_NotFound(t *testing.T) {
	_, router := attachmentRouter(t)
	if w := do(t, router, http.MethodGet, "/attachments/nope.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing attachment = %d, want 404", w.Code)
	}
}

func TestServeAttachment_TraversalBlocked(t *testing.T) {
	_, router := attachmentRouter(t)
	if w := do(t, router, http.MethodGet, "/attachments/..%2Fsecret.md", nil); w.Code != http.StatusBadRequest && w.Code != http.StatusNotFound {
		t.Errorf("traversal = %d, want 400 or 404", w.Code)
	}
}

func TestServeAttachment_NoVault(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/attachments/{filename}", NewAttachmentHandler(nil).ServeFile)
	if w := do(t, r, http.MethodGet, "/attachments/a.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("no vault = %d, want 404", w.Code)
	}
}
