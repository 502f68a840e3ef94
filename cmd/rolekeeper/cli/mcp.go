package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faucetdb/rolekeeper/internal/config"
	rmcp "github.com/faucetdb/rolekeeper/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
		actorID   int64
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes admin role management
as tools for AI agents. Every call runs as the admin given by --actor (or
mcp.actor_id): reads need an active account, update_admin needs a Super Admin.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for direct integration with desktop MCP clients.

In HTTP mode, the server listens on the specified port using Streamable HTTP.`,
		Example: `  rolekeeper mcp --actor 1                            # stdio mode
  rolekeeper mcp --actor 1 --transport http --port 3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("actor") {
				cfg.MCP.ActorID = actorID
			}
			if cmd.Flags().Changed("transport") {
				cfg.MCP.Transport = transport
			}
			return runMCP(cfg, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")
	cmd.Flags().Int64Var(&actorID, "actor", 0, "ID of the admin the MCP session acts as")

	return cmd
}

func runMCP(cfg *config.YAMLConfig, port int) error {
	ctx := context.Background()
	logger := newLogger(cfg.Logging)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Fail fast on a bad actor; tools re-check on every call.
	actor, err := store.GetAdmin(ctx, cfg.MCP.ActorID)
	if err != nil {
		return fmt.Errorf("acting admin %d: %w", cfg.MCP.ActorID, err)
	}
	if !actor.IsActive {
		return fmt.Errorf("acting admin %d is disabled", actor.ID)
	}

	edits, closeEdits, err := newEditService(ctx, store, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEdits()

	mcpSrv := rmcp.NewMCPServer(store, edits, actor.ID, versionString(), logger)

	switch cfg.MCP.Transport {
	case "", "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", port))
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", cfg.MCP.Transport)
	}
}
