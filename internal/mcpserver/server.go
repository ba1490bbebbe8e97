// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Neural Notes tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/neuralnotes/internal/index"
	"github.com/starford/neuralnotes/internal/markdown"
	"github.com/starford/neuralnotes/internal/models"
	"github.com/starford/neuralnotes/internal/notestore"
	"github.com/starford/neuralnotes/internal/parser"
)

// FormatURI is the resource holding NoteFormatContract.
const FormatURI = "neuralnotes://note-format"

// Server wraps the MCP server with Neural Notes tools.
type Server struct {
	mcp      *server.MCPServer
	store    *notestore.Store
	db       index.NoteIndex
	renderer *markdown.Renderer
}

// New creates a new MCP server with all tools registered.
func New(store *notestore.Store, db index.NoteIndex, renderer *markdown.Renderer, version string) *Server {
	s := &Server{store: store, db: db, renderer: renderer}

	s.mcp = server.NewMCPServer(
		"Neural Notes",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the content of a note by id or title."),
		mcp.WithString("note", mcp.Required(), mcp.Description("Note id, or its title (case-insensitive)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. Content follows the note format contract; read it first "+
			"via get_note_contract or the "+FormatURI+" resource."),
		mcp.WithString("title", mcp.Description("Note title; taken from frontmatter or the first heading when empty")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content, one construct per line")),
		mcp.WithString("folder", mcp.Description("Optional folder id")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format contract. Call this before creating notes."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, newest first, one 'id<TAB>title' per line."),
		mcp.WithString("folder", mcp.Description("Optional folder id, or 'uncategorized'")),
		mcp.WithString("query", mcp.Description("Optional case-insensitive filter on title and content")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the given title with [[Title]]."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the linked note")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("render_note",
		mcp.WithDescription("Render a note to sanitized HTML, with backlinks marked existing or missing."),
		mcp.WithString("note", mcp.Required(), mcp.Description("Note id or title")),
	), s.renderNote)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Note Format Contract",
			mcp.WithResourceDescription("How Neural Notes classifies lines, links notes and reads metadata."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// lookup finds a note by id, falling back to a title match.
func (s *Server) lookup(ref string) (*models.Note, error) {
	if n, err := s.store.Get(ref); err == nil {
		return n, nil
	}
	if t, ok := s.store.Resolver().Lookup(ref); ok {
		return s.store.Get(t.ID)
	}
	return nil, fmt.Errorf("not found: %s", ref)
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.db.Search(query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.lookup(ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(n.Content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folder := req.GetString("folder", "")
	if folder != "" && folder != notestore.Uncategorized {
		if _, err := s.store.Folder(folder); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unknown folder: %s", folder)), nil
		}
	}

	res, err := parser.Parse([]byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title := req.GetString("title", "")
	if strings.TrimSpace(title) == "" {
		title = res.Title
	}

	n := s.store.Create(title)
	if _, err := s.store.Replace(n.ID, res.Lines, ""); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	for _, tag := range res.Tags {
		if _, err := s.store.AddTag(n.ID, tag); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if folder != "" {
		if _, err := s.store.MoveToFolder(n.ID, folder); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.ID)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := req.GetString("folder", "")
	want := folder
	if want == notestore.Uncategorized {
		want = ""
	}

	var lines []string
	for _, n := range s.store.Filter(req.GetString("query", "")) {
		if folder != "" && n.FolderID != want {
			continue
		}
		lines = append(lines, n.ID+"\t"+n.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.db.Backlinks(title)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, len(refs))
	for i, r := range refs {
		lines[i] = r.ID + "\t" + r.Title
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) renderNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.lookup(ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(markdown.HTML(s.renderer.Note(n, s.store.Resolver()))), nil
}
