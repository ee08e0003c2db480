// ABOUTME: MCP server setup for the deficit ledger.
// ABOUTME: Wraps the MCP server around a Ledger so agents can read and edit it.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/deficit/internal/ledger"
	"github.com/harperreed/deficit/internal/logger"
)

// Server wraps the MCP server with ledger access.
type Server struct {
	mcpServer *mcp.Server
	ledger    *ledger.Ledger
	log       *logger.Logger
}

// NewServer creates a new MCP server over the given ledger.
func NewServer(l *ledger.Ledger, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "deficit",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		ledger:    l,
		log:       log,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info().Msg("mcp server starting on stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
