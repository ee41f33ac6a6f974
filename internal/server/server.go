package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Searcher       Searcher
	Ingestor       Ingestor
	Status         StatusStore
	EmbeddingModel string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "recall-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_notes",
		Description: "Search the knowledge base semantically. Returns documents whose passages are conceptually similar to the query, with similarity scores.",
	}, makeSearchNotesHandler(cfg.Searcher))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "match_notes",
		Description: "Find notes containing a literal text pattern. Matches against full note bodies and individual passages; results carry no relevance scores.",
	}, makeMatchNotesHandler(cfg.Searcher))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_note",
		Description: "Capture a plain-text note into the knowledge base. Identical content is deduplicated and returns the existing note.",
	}, makeIngestNoteHandler(cfg.Ingestor))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Get knowledge base statistics: document and passage counts, documents awaiting vector repair, and the embedding model in use.",
	}, makeStatusHandler(cfg.Status, cfg.EmbeddingModel))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
