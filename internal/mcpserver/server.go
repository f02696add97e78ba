// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the ruin note engine to LLMs via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ruin/internal/apperr"
	"github.com/starford/ruin/internal/engine"
	"github.com/starford/ruin/internal/models"
)

const querySyntaxURI = "ruin://query-syntax"

// Server wraps the MCP server with ruin tools.
type Server struct {
	mcp      *server.MCPServer
	eng      engine.NoteEngine
	handlers map[string]server.ToolHandlerFunc
}

// New creates a new MCP server with all ruin tools registered.
func New(eng engine.NoteEngine, version string) *Server {
	s := &Server{eng: eng, handlers: make(map[string]server.ToolHandlerFunc)}

	s.mcp = server.NewMCPServer(
		"ruin",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.addTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes with the ruin query language "+
			"(clauses joined by &&: #tag, title:, created:/before:/after:/between:, free text). "+
			"Read get_query_syntax first if unsure."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query string, e.g. #work && created:this-week")),
	), s.searchNotes)

	s.addTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List every note in the vault, newest first."),
	), s.listNotes)

	s.addTool(mcp.NewTool("today_notes",
		mcp.WithDescription("List the notes created today."),
	), s.todayNotes)

	s.addTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Inline #tags in the content become tags of the note."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body of the note")),
		mcp.WithString("title", mcp.Description("Optional explicit title")),
	), s.createNote)

	s.addTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full file content of a note by its uuid."),
		mcp.WithString("uuid", mcp.Required(), mcp.Description("Note uuid as returned by search_notes")),
	), s.readNote)

	s.addTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List every tag with the number of notes carrying it."),
	), s.listTags)

	s.addTool(mcp.NewTool("rename_tag",
		mcp.WithDescription("Rename a tag in every note. Renaming onto an existing tag merges the two."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Current tag name")),
		mcp.WithString("to", mcp.Required(), mcp.Description("New tag name")),
	), s.renameTag)

	s.addTool(mcp.NewTool("delete_tag",
		mcp.WithDescription("Remove a tag from every note. The notes themselves are kept."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Tag name")),
	), s.deleteTag)

	s.addTool(mcp.NewTool("list_queries",
		mcp.WithDescription("List saved queries."),
	), s.listQueries)

	s.addTool(mcp.NewTool("save_query",
		mcp.WithDescription("Save a query under a name, replacing any query with the same name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Query name")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query string")),
	), s.saveQuery)

	s.addTool(mcp.NewTool("run_query",
		mcp.WithDescription("Run a saved query against the current notes."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Query name")),
	), s.runQuery)

	s.addTool(mcp.NewTool("delete_query",
		mcp.WithDescription("Delete a saved query."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Query name")),
	), s.deleteQuery)

	s.addTool(mcp.NewTool("get_query_syntax",
		mcp.WithDescription("Returns the reference for the ruin query language."),
	), s.getQuerySyntax)

	s.mcp.AddResource(
		mcp.NewResource(querySyntaxURI, "Query Syntax",
			mcp.WithResourceDescription("Reference for the ruin query language."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readQuerySyntaxResource,
	)

	return s
}

func (s *Server) addTool(tool mcp.Tool, h server.ToolHandlerFunc) {
	s.handlers[tool.Name] = h
	s.mcp.AddTool(tool, h)
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError turns an engine error into a tool error result. Syntax errors
// keep their clause so the model can correct the query.
func toolError(err error) *mcp.CallToolResult {
	var se *apperr.SyntaxError
	switch {
	case errors.As(err, &se):
		return mcp.NewToolResultError(se.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.eng.Search(ctx, q)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(models.Summarize(notes))
}

func (s *Server) listNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.eng.All(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(models.Summarize(notes))
}

func (s *Server) todayNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.eng.Today(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(models.Summarize(notes))
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title := ""
	if t, err := req.RequireString("title"); err == nil {
		title = t
	}
	res, err := s.eng.Create(ctx, content, title)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("uuid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.eng.Get(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(string(n.Content)), nil
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.eng.Tags(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(tags)
}

func (s *Server) renameTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.eng.RenameTag(ctx, from, to); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed #%s to #%s", from, to)), nil
}

func (s *Server) deleteTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.eng.DeleteTag(ctx, name); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted #%s", name)), nil
}

func (s *Server) listQueries(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.eng.Queries(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(list)
}

func (s *Server) saveQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.eng.SaveQuery(ctx, name, q); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved query %s", name)), nil
}

func (s *Server) runQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.eng.RunQuery(ctx, name)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(models.Summarize(notes))
}

func (s *Server) deleteQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.eng.DeleteQuery(ctx, name); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted query %s", name)), nil
}

func (s *Server) getQuerySyntax(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(QuerySyntax), nil
}

func (s *Server) readQuerySyntaxResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      querySyntaxURI,
			MIMEType: "text/markdown",
			Text:     QuerySyntax,
		},
	}, nil
}
